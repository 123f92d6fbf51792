package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/maildispatch/internal/email/domain"
	"github.com/allisson/maildispatch/internal/email/http/dto"
	"github.com/allisson/maildispatch/internal/email/usecase/mocks"
	apperrors "github.com/allisson/maildispatch/internal/errors"
)

func setupEmailHandler() (*EmailHandler, *mocks.MockEmailUseCase) {
	useCase := &mocks.MockEmailUseCase{}
	return NewEmailHandler(useCase, testLogger()), useCase
}

func sampleRecord() *domain.EmailRecord {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &domain.EmailRecord{
		ID:          uuid.Must(uuid.NewV7()),
		Recipient:   "rider@example.com",
		Subject:     "Booking Confirmed",
		BodyHTML:    "<p>ok</p>",
		Category:    domain.CategoryBookingConfirmation,
		Status:      domain.StatusQueued,
		MaxAttempts: 3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestEmailHandler_EnqueueHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, useCase := setupEmailHandler()
		record := sampleRecord()

		useCase.On("Enqueue", mock.Anything, mock.MatchedBy(func(in *domain.EnqueueInput) bool {
			return in.Recipient == "rider@example.com" && in.Category == domain.CategoryBookingConfirmation
		})).Return(record, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/emails", dto.EnqueueEmailRequest{
			Recipient: "rider@example.com",
			Subject:   "Booking Confirmed",
			BodyHTML:  "<p>ok</p>",
			Category:  "booking_confirmation",
		})
		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response dto.EmailResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, record.ID.String(), response.ID)
		assert.Equal(t, "queued", response.Status)
		assert.False(t, response.Exhausted)
		useCase.AssertExpectations(t)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, useCase := setupEmailHandler()

		c, w := createTestContext(http.MethodPost, "/v1/emails", nil)
		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		useCase.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("Error_Validation", func(t *testing.T) {
		handler, useCase := setupEmailHandler()

		c, w := createTestContext(http.MethodPost, "/v1/emails", dto.EnqueueEmailRequest{
			Recipient: "not-an-address",
			Subject:   "Hi",
			BodyHTML:  "<p>ok</p>",
		})
		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		useCase.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("Error_UseCaseRejectsCategory", func(t *testing.T) {
		handler, useCase := setupEmailHandler()
		useCase.On("Enqueue", mock.Anything, mock.Anything).
			Return(nil, apperrors.Wrap(apperrors.ErrInvalidInput, "Category: must be a valid value")).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/emails", dto.EnqueueEmailRequest{
			Recipient: "rider@example.com",
			Subject:   "Hi",
			BodyHTML:  "<p>ok</p>",
			Category:  "marketing",
		})
		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestEmailHandler_GetHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, useCase := setupEmailHandler()
		record := sampleRecord()
		useCase.On("Get", mock.Anything, record.ID).Return(record, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/emails/"+record.ID.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: record.ID.String()}}
		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.EmailResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "rider@example.com", response.Recipient)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		handler, useCase := setupEmailHandler()
		id := uuid.Must(uuid.NewV7())
		useCase.On("Get", mock.Anything, id).Return(nil, domain.ErrEmailNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/emails/"+id.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Error_InvalidID", func(t *testing.T) {
		handler, useCase := setupEmailHandler()

		c, w := createTestContext(http.MethodGet, "/v1/emails/abc", nil)
		c.Params = gin.Params{{Key: "id", Value: "abc"}}
		handler.GetHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		useCase.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestEmailHandler_ListHandler(t *testing.T) {
	t.Run("Success_ExhaustedFilter", func(t *testing.T) {
		handler, useCase := setupEmailHandler()
		record := sampleRecord()
		record.Status = domain.StatusFailed
		record.AttemptCount = 3

		failed := domain.StatusFailed
		useCase.On("List", mock.Anything, domain.ListFilter{Status: &failed, ExhaustedOnly: true}, 10, 20).
			Return([]*domain.EmailRecord{record}, nil).
			Once()

		c, w := createTestContext(http.MethodGet, "/v1/emails?status=failed&exhausted=true&offset=10&limit=20", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ListEmailsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.True(t, response.Data[0].Exhausted)
		useCase.AssertExpectations(t)
	})

	t.Run("Success_Empty", func(t *testing.T) {
		handler, useCase := setupEmailHandler()
		useCase.On("List", mock.Anything, domain.ListFilter{}, 0, 50).Return([]*domain.EmailRecord{}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/emails", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	})

	t.Run("Error_InvalidStatus", func(t *testing.T) {
		handler, useCase := setupEmailHandler()
		useCase.On("List", mock.Anything, mock.Anything, 0, 50).Return(nil, domain.ErrInvalidStatus).Once()

		c, w := createTestContext(http.MethodGet, "/v1/emails?status=bounced", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvalidPagination", func(t *testing.T) {
		handler, _ := setupEmailHandler()

		c, w := createTestContext(http.MethodGet, "/v1/emails?limit=1000", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Error_InvalidExhausted", func(t *testing.T) {
		handler, _ := setupEmailHandler()

		c, w := createTestContext(http.MethodGet, "/v1/emails?exhausted=maybe", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEmailHandler_ListAttemptsHandler(t *testing.T) {
	handler, useCase := setupEmailHandler()
	id := uuid.Must(uuid.NewV7())
	attempts := []*domain.DeliveryAttempt{
		{ID: uuid.Must(uuid.NewV7()), EmailID: id, AttemptNumber: 1, Provider: "smtp",
			ErrorClass: domain.ErrorClassAuth, Reason: "535 bad credentials"},
		{ID: uuid.Must(uuid.NewV7()), EmailID: id, AttemptNumber: 1, Provider: "resend", Success: true},
	}
	useCase.On("ListAttempts", mock.Anything, id).Return(attempts, nil).Once()

	c, w := createTestContext(http.MethodGet, "/v1/emails/"+id.String()+"/attempts", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	handler.ListAttemptsHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response dto.ListDeliveryAttemptsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Data, 2)
	assert.Equal(t, "auth", response.Data[0].ErrorClass)
	assert.True(t, response.Data[1].Success)
}
