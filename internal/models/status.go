package models

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionBooked    SessionStatus = "booked"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionOpen:   {SessionBooked, SessionCancelled},
	SessionBooked: {SessionCompleted, SessionCancelled},
}

// CanTransitionTo reports whether a session may move from s to next.
// Sessions only move forward; cancellation is reachable from open or booked.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether the session's time window, rate, tags and notes may change
func (s SessionStatus) Editable() bool {
	return s == SessionOpen || s == SessionBooked
}

// Valid reports whether s is a known session status
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionOpen, SessionBooked, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// RequestStatus is the negotiation state of a session request
type RequestStatus string

const (
	RequestPending        RequestStatus = "pending"
	RequestCounterOffered RequestStatus = "counter_offered"
	RequestAccepted       RequestStatus = "accepted"
	RequestDeclined       RequestStatus = "declined"
	RequestCancelled      RequestStatus = "cancelled"
	RequestCompleted      RequestStatus = "completed"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:        {RequestAccepted, RequestDeclined, RequestCounterOffered, RequestCancelled},
	RequestCounterOffered: {RequestAccepted, RequestDeclined},
	RequestAccepted:       {RequestCompleted},
}

// CanTransitionTo reports whether a request may move from s to next
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Open reports whether the request is still under negotiation
func (s RequestStatus) Open() bool {
	return s == RequestPending || s == RequestCounterOffered
}

// OpenRequestStatuses lists the statuses swept to declined once a session is taken
var OpenRequestStatuses = []RequestStatus{RequestPending, RequestCounterOffered}

// CounterOfferStatus is the state of an embedded counter offer
type CounterOfferStatus string

const (
	CounterOfferPending  CounterOfferStatus = "pending"
	CounterOfferAccepted CounterOfferStatus = "accepted"
	CounterOfferDeclined CounterOfferStatus = "declined"
	CounterOfferExpired  CounterOfferStatus = "expired"
)

// TerrainTag categorizes the terrain a session covers
type TerrainTag string

const (
	TerrainPark        TerrainTag = "park"
	TerrainAllMountain TerrainTag = "all-mountain"
	TerrainGroomers    TerrainTag = "groomers"
)

// Valid reports whether t is a known terrain tag
func (t TerrainTag) Valid() bool {
	switch t {
	case TerrainPark, TerrainAllMountain, TerrainGroomers:
		return true
	}
	return false
}

// IntersectsAny reports whether any tag in tags is present in filter
func IntersectsAny(tags, filter []TerrainTag) bool {
	for _, t := range tags {
		for _, f := range filter {
			if t == f {
				return true
			}
		}
	}
	return false
}

// RequestRole selects which side of a request a user is listing
type RequestRole string

const (
	RoleRider  RequestRole = "rider"
	RoleFilmer RequestRole = "filmer"
)
