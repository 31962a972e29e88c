// Package notify publishes compliance alerts to an SNS topic.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"
)

const (
	alertSubject      = "Audit Complete: Resources Need KMS Encryption Review"
	scanFailedSubject = "⚠️ Security Scan FAILED"

	alertIntro = "Hi team,\n\nOur automated security auditor just finished its daily scan and found a few resources that don't seem to be using our preferred KMS encryption. Don't panic! Most of these are probably just using default AWS encryption, but our policy is to use KMS for everything.\n\nHere's a breakdown of what it found:\n\n"

	alertFooter = "\n\nPlease take a look at these when you get a chance so we can stay compliant. If these are low-priority or dev resources, no rush.\n\nThanks!\n\n- Your Friendly Security Bot"
)

// PublishAPI is the slice of the SNS client the notifier needs
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends compliance alerts to a single SNS topic
type Notifier struct {
	snsClient PublishAPI
	topicArn  string
}

// New creates a new Notifier instance
func New(snsClient PublishAPI, topicArn string) *Notifier {
	return &Notifier{
		snsClient: snsClient,
		topicArn:  topicArn,
	}
}

// BuildAlertMessage wraps the issue lines in the standard preamble and
// footer, one bullet per issue
func BuildAlertMessage(issues []string) string {
	var sb strings.Builder
	sb.WriteString(alertIntro)
	for i, issue := range issues {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("• ")
		sb.WriteString(issue)
	}
	sb.WriteString(alertFooter)
	return sb.String()
}

// SendComplianceAlert publishes one alert listing every issue from a scan.
// Callers only invoke this when the issue list is non-empty.
func (n *Notifier) SendComplianceAlert(ctx context.Context, issues []string) error {
	logger := zerolog.Ctx(ctx)

	result, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(alertSubject),
		Message:  aws.String(BuildAlertMessage(issues)),
	})
	if err != nil {
		return fmt.Errorf("failed to publish compliance alert: %w", err)
	}

	logger.Info().
		Str("message_id", aws.ToString(result.MessageId)).
		Int("issues", len(issues)).
		Msg("Compliance alert sent")
	return nil
}

// NotifyScanFailure makes a best-effort attempt to report that the scan
// itself could not run. Publish errors are logged and discarded so they
// never mask the original scan failure.
func (n *Notifier) NotifyScanFailure(ctx context.Context, scanErr error) {
	logger := zerolog.Ctx(ctx)

	message := fmt.Sprintf("The scheduled security scan encountered a critical error and could not complete:\n\n%s", scanErr)

	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(scanFailedSubject),
		Message:  aws.String(message),
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send scan failure alert")
	}
}
