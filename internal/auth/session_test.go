package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionService_IssueAndParse(t *testing.T) {
	svc := NewSessionService("test-secret")
	userID := uuid.New()

	token, sessionID, err := svc.Issue(userID)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, sessionID)

	claims, err := svc.Parse(token)
	assert.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, sessionID, claims.ID)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestSessionService_Parse_WrongSecret(t *testing.T) {
	token, _, err := NewSessionService("secret-a").Issue(uuid.New())
	assert.NoError(t, err)

	_, err = NewSessionService("secret-b").Parse(token)
	assert.Error(t, err)
}

func TestSessionService_Parse_Garbage(t *testing.T) {
	svc := NewSessionService("test-secret")

	_, err := svc.Parse("not-a-token")
	assert.Error(t, err)

	_, err = svc.Parse("")
	assert.Error(t, err)
}

func TestSessionService_IssueUniqueSessionIDs(t *testing.T) {
	svc := NewSessionService("test-secret")
	userID := uuid.New()

	_, first, err := svc.Issue(userID)
	assert.NoError(t, err)
	_, second, err := svc.Issue(userID)
	assert.NoError(t, err)

	assert.NotEqual(t, first, second)
}
