package models

// AuthRequest is the login payload.
type AuthRequest struct {
	Password string `json:"password" validate:"required"`
}

// PageRequest is shared pagination for ranking and alert listings.
type PageRequest struct {
	Page int `query:"page" default:"1" validate:"gte=1"`
	Size int `query:"size" default:"50" validate:"gte=1,lte=200"`
}

// TrendRequest selects an instrument's recent heat series.
type TrendRequest struct {
	Hours int `query:"hours" default:"24" validate:"gte=1,lte=168"`
}

// TriggerRequest names the job to run.
type TriggerRequest struct {
	Job string `json:"job" query:"job" default:"scan"`
}
