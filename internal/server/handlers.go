package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/service"
)

type processEmailRequest struct {
	ExternalEmailID string    `json:"external_email_id" binding:"required"`
	Sender          string    `json:"sender" binding:"required"`
	Recipient       string    `json:"recipient"`
	Subject         string    `json:"subject"`
	BodyText        string    `json:"body_text" binding:"required"`
	BodyHTML        *string   `json:"body_html"`
	ReceivedAt      time.Time `json:"received_at" binding:"required"`
}

type processEmailResponse struct {
	Status        service.OutcomeStatus `json:"status"`
	EmailID       string                `json:"email_id,omitempty"`
	ApplicationID string                `json:"application_id,omitempty"`
	EventID       string                `json:"event_id,omitempty"`
	UpdatedFields []string              `json:"updated_fields,omitempty"`
}

// handleProcessEmail runs the workflow for one directly submitted email:
// one request, one workflow run, one typed outcome.
func (s *Server) handleProcessEmail(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return
	}

	var req processEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := s.processor.ProcessEmail(c.Request.Context(), userID, service.RawEmail{
		ExternalID: req.ExternalEmailID,
		Sender:     req.Sender,
		Recipient:  req.Recipient,
		Subject:    req.Subject,
		BodyText:   req.BodyText,
		BodyHTML:   req.BodyHTML,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil {
		if service.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.log.WithError(err).Error("email processing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "email processing failed, the email is stored for reprocessing"})
		return
	}

	status := http.StatusOK
	switch outcome.Status {
	case service.OutcomeNewApplication:
		status = http.StatusCreated
	case service.OutcomeNeedsReview:
		status = http.StatusAccepted
	}

	c.JSON(status, processEmailResponse{
		Status:        outcome.Status,
		EmailID:       outcome.EmailID,
		ApplicationID: outcome.ApplicationID,
		EventID:       outcome.EventID,
		UpdatedFields: outcome.UpdatedFields,
	})
}

// pubsubEnvelope is the Pub/Sub push wrapper; Data is base64 JSON.
type pubsubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// gmailNotification is the decoded Gmail watch payload. historyId arrives
// as a number or a string depending on the publisher.
type gmailNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// handleGmailPush acks the push immediately and ingests in the background;
// Pub/Sub redelivers on non-2xx, so malformed envelopes are acked too.
func (s *Server) handleGmailPush(c *gin.Context) {
	var envelope pubsubEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		s.log.WithError(err).Warn("invalid pubsub envelope")
		c.Status(http.StatusNoContent)
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		s.log.WithError(err).Warn("pubsub data not valid base64")
		c.Status(http.StatusNoContent)
		return
	}

	var notification gmailNotification
	if err := json.Unmarshal(decoded, &notification); err != nil || notification.EmailAddress == "" {
		s.log.Warn("pubsub data not a gmail notification")
		c.Status(http.StatusNoContent)
		return
	}

	historyID, err := strconv.ParseUint(notification.HistoryID.String(), 10, 64)
	if err != nil {
		s.log.WithField("history_id", notification.HistoryID.String()).Warn("invalid history id in push")
		c.Status(http.StatusNoContent)
		return
	}

	c.Status(http.StatusNoContent)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.pushes.HandlePush(ctx, notification.EmailAddress, historyID); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"email_address": notification.EmailAddress,
				"history_id":    historyID,
			}).Error("gmail push ingestion failed")
		}
	}()
}
