package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finlens/internal/core"
)

// SyncRequestMessage asks a worker to pull transactions for one account.
// The worker loads the account and its access token from storage.
type SyncRequestMessage struct {
	AccountID string    `json:"accountId"`
	UserID    string    `json:"userId"`
	StartDate core.Date `json:"startDate"`
	EndDate   core.Date `json:"endDate"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRequestMessage(userID, accountID string, start, end core.Date, reason string) *SyncRequestMessage {
	return &SyncRequestMessage{
		AccountID: accountID,
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AccountID == "" {
		return nil, fmt.Errorf("sync request without account id")
	}
	return &msg, nil
}
