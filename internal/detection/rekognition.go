package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rekognitiontypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// customLabelsAPI is the subset of the Rekognition client used here.
type customLabelsAPI interface {
	DetectCustomLabels(ctx context.Context, params *rekognition.DetectCustomLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectCustomLabelsOutput, error)
}

// RekognitionClient calls a Rekognition Custom Labels model with byte payloads (no S3 dependency).
type RekognitionClient struct {
	client            customLabelsAPI
	projectVersionARN string
}

// NewRekognitionClient creates a detector that uses ambient AWS credentials/profile.
func NewRekognitionClient(ctx context.Context, region, projectVersionARN string) (*RekognitionClient, error) {
	if strings.TrimSpace(projectVersionARN) == "" {
		return nil, fmt.Errorf("rekognition project version arn is required")
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{}
	trimmedRegion := strings.TrimSpace(region)
	if trimmedRegion != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(trimmedRegion))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &RekognitionClient{
		client:            rekognition.NewFromConfig(cfg),
		projectVersionARN: projectVersionARN,
	}, nil
}

// Name identifies the backend in logs and metrics.
func (c *RekognitionClient) Name() string {
	return "rekognition"
}

// Detect runs DetectCustomLabels and converts the ratio boxes into pixel
// center-form predictions.
func (c *RekognitionClient) Detect(ctx context.Context, imageBytes []byte, threshold float64) ([]Prediction, error) {
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("image bytes are required")
	}

	width, height := imageSize(imageBytes)

	output, err := c.client.DetectCustomLabels(ctx, &rekognition.DetectCustomLabelsInput{
		Image: &rekognitiontypes.Image{
			Bytes: imageBytes,
		},
		ProjectVersionArn: aws.String(c.projectVersionARN),
		MinConfidence:     aws.Float32(float32(threshold * 100)),
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition detect custom labels failed: %w", err)
	}

	predictions := make([]Prediction, 0, len(output.CustomLabels))
	for _, label := range output.CustomLabels {
		confidence := 0.0
		if label.Confidence != nil {
			confidence = float64(*label.Confidence) / 100
		}

		p := Prediction{
			ClassLabel: aws.ToString(label.Name),
			Confidence: confidence,
		}
		if label.Geometry != nil && label.Geometry.BoundingBox != nil {
			box := label.Geometry.BoundingBox
			w := float64(aws.ToFloat32(box.Width)) * width
			h := float64(aws.ToFloat32(box.Height)) * height
			p.X = float64(aws.ToFloat32(box.Left))*width + w/2
			p.Y = float64(aws.ToFloat32(box.Top))*height + h/2
			p.Width = w
			p.Height = h
		}
		predictions = append(predictions, p)
	}

	return predictions, nil
}

// imageSize returns pixel dimensions, or zero when the header cannot be decoded.
func imageSize(data []byte) (float64, float64) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return float64(cfg.Width), float64(cfg.Height)
}

var _ Detector = (*RekognitionClient)(nil)
