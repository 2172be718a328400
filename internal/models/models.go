package models

import "time"

// User represents a user in the system
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	IsFilmer         bool      `json:"is_filmer"`
	IsAdmin          bool      `json:"is_admin"`
	SessionRate      *float64  `json:"session_rate,omitempty"`
	SessionsAsRider  int       `json:"sessions_as_rider"`
	SessionsAsFilmer int       `json:"sessions_as_filmer"`
	AverageRating    *float64  `json:"average_rating"`
	ReviewCount      int       `json:"review_count"`
	RatingSum        int       `json:"-"`
	Token            string    `json:"token,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session represents a filmer's bookable time slot at a mountain
type Session struct {
	ID          string        `json:"id"`
	FilmerID    string        `json:"filmer_id"`
	Status      SessionStatus `json:"status"`
	MountainID  string        `json:"mountain_id"`
	Date        string        `json:"date"`
	StartTime   string        `json:"start_time"`
	EndTime     string        `json:"end_time"`
	TerrainTags []TerrainTag  `json:"terrain_tags"`
	Rate        float64       `json:"rate"`
	Notes       *string       `json:"notes"`
	RiderID     *string       `json:"rider_id"`
	RequestID   *string       `json:"request_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Clone returns a copy that shares no slices or pointers with s
func (s *Session) Clone() *Session {
	c := *s
	c.TerrainTags = append([]TerrainTag(nil), s.TerrainTags...)
	c.Notes = cloneString(s.Notes)
	c.RiderID = cloneString(s.RiderID)
	c.RequestID = cloneString(s.RequestID)
	return &c
}

// CounterOffer holds the filmer's proposed alternative terms for a request
type CounterOffer struct {
	ID        string             `json:"id"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
	Amount    float64            `json:"amount"`
	Message   string             `json:"message"`
	Status    CounterOfferStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// SessionRequest represents a rider's bid to book a session
type SessionRequest struct {
	ID                string        `json:"id"`
	SessionID         string        `json:"session_id"`
	RiderID           string        `json:"rider_id"`
	FilmerID          string        `json:"filmer_id"`
	Status            RequestStatus `json:"status"`
	Message           string        `json:"message"`
	RiderTerrainLevel []TerrainTag  `json:"rider_terrain_level"`
	Amount            float64       `json:"amount"`
	PaymentReference  *string       `json:"payment_reference"`
	CounterOffer      *CounterOffer `json:"counter_offer"`
	CreatedAt         time.Time     `json:"created_at"`
	RespondedAt       *time.Time    `json:"responded_at"`
}

// Clone returns a copy that shares no slices or pointers with r
func (r *SessionRequest) Clone() *SessionRequest {
	c := *r
	c.RiderTerrainLevel = append([]TerrainTag(nil), r.RiderTerrainLevel...)
	c.PaymentReference = cloneString(r.PaymentReference)
	if r.CounterOffer != nil {
		co := *r.CounterOffer
		c.CounterOffer = &co
	}
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		c.RespondedAt = &t
	}
	return &c
}

// Conversation represents a message thread between two participants of a session
type Conversation struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Participants  []string  `json:"participants"`
	Key           string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// HasParticipant reports whether userID is one of the conversation's participants
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message represents a single chat message in a conversation
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// Review represents a rider's feedback on a completed session
type Review struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	FilmerID    string    `json:"filmer_id"`
	RiderID     string    `json:"rider_id"`
	Rating      int       `json:"rating"`
	Text        string    `json:"text"`
	CouldKeepUp bool      `json:"could_keep_up"`
	GoodQuality bool      `json:"good_quality"`
	GoodVibes   bool      `json:"good_vibes"`
	CreatedAt   time.Time `json:"created_at"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
