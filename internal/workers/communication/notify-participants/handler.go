package notifyparticipants

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	commonaws "opposite-match-workers/internal/common/aws"
	"opposite-match-workers/internal/common/logger"
	"opposite-match-workers/internal/common/validation"
	"opposite-match-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "notify-participants"
)

// EmailSender and SMSSender are satisfied by the shared AWS wrappers and
// by test doubles.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	db        *sql.DB
	logger    logger.Logger
	sesClient EmailSender
	snsClient SMSSender
	templates map[string]map[string]string
}

func NewHandler(ctx context.Context, config *Config, db *sql.DB, log logger.Logger) (*Handler, error) {
	sesClient, err := commonaws.NewSESClient(ctx, config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("create SES client: %w", err)
	}
	snsClient, err := commonaws.NewSNSClient(ctx, config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("create SNS client: %w", err)
	}
	return newHandlerWithClients(config, db, log, sesClient, snsClient), nil
}

func newHandlerWithClients(config *Config, db *sql.DB, log logger.Logger, sesClient EmailSender, snsClient SMSSender) *Handler {
	return &Handler{
		config:    config,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		sesClient: sesClient,
		snsClient: snsClient,
		templates: defaultTemplates(),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "NOTIFICATION_SEND_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	template, exists := h.templates[input.NotificationType]
	if !exists {
		return nil, fmt.Errorf("unknown notification type: %s", input.NotificationType)
	}

	notificationID := uuid.New().String()
	sentAt := time.Now().UTC().Format(time.RFC3339)

	contact, err := h.getRecipientContact(ctx, input.RecipientID)
	if err != nil {
		h.logger.Warn("recipient contact not found", map[string]interface{}{
			"recipientId": input.RecipientID,
		})
		return &Output{
			NotificationID: notificationID,
			Status:         StatusDisabled,
			Channels:       []string{},
			SentAt:         sentAt,
		}, nil
	}

	data := map[string]string{
		"name":      contact.Name,
		"partnerId": input.PartnerID,
		"surveyId":  input.SurveyID,
		"totalDiff": strconv.Itoa(input.TotalDiff),
	}
	for k, v := range input.Metadata {
		data[k] = fmt.Sprintf("%v", v)
	}

	subject := renderTemplate(template["subject"], data)
	body := renderTemplate(template["body"], data)

	channels := []string{}

	if h.config.EmailEnabled && validation.ValidateEmail(contact.Email) {
		if err := h.sendEmail(ctx, contact.Email, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"recipientId": input.RecipientID,
				"error":       err,
			})
			return &Output{
				NotificationID: notificationID,
				Status:         StatusFailed,
				Channels:       channels,
				SentAt:         sentAt,
			}, nil
		}
		channels = append(channels, "email")
	}

	// SMS only goes out for high priority notifications.
	if h.config.SMSEnabled && input.Priority == PriorityHigh && validation.ValidatePhone(contact.Phone) {
		if err := h.sendSMS(ctx, contact.Phone, body); err != nil {
			h.logger.Error("sms send failed", map[string]interface{}{
				"recipientId": input.RecipientID,
				"error":       err,
			})
			return &Output{
				NotificationID: notificationID,
				Status:         StatusFailed,
				Channels:       channels,
				SentAt:         sentAt,
			}, nil
		}
		channels = append(channels, "sms")
	}

	status := StatusDisabled
	if len(channels) > 0 {
		status = StatusSent
	}

	h.logger.Info("notification processed", map[string]interface{}{
		"notificationId": notificationID,
		"recipientId":    input.RecipientID,
		"type":           input.NotificationType,
		"status":         status,
		"channels":       channels,
	})

	return &Output{
		NotificationID: notificationID,
		Status:         status,
		Channels:       channels,
		SentAt:         sentAt,
	}, nil
}

func (h *Handler) getRecipientContact(ctx context.Context, recipientID string) (*models.RespondentContact, error) {
	contact := models.RespondentContact{RespondentID: recipientID}
	err := h.db.QueryRowContext(ctx, `
		SELECT name, email, phone FROM respondents WHERE id = $1`, recipientID).
		Scan(&contact.Name, &contact.Email, &contact.Phone)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func renderTemplate(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

func defaultTemplates() map[string]map[string]string {
	return map[string]map[string]string{
		TypeMatchFound: {
			"subject": "We found your opposite",
			"body":    "Hi {{name}}, you have been paired with the respondent who disagrees with you the most (difference score {{totalDiff}}). Say hello and find out why.",
		},
		TypeLeftUnmatched: {
			"subject": "No pair this round",
			"body":    "Hi {{name}}, this round had an odd number of participants and you were not paired. You are first in line for the next run.",
		},
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
