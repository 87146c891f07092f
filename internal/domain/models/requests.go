package models

// Requests for prediction HTTP endpoints. Defined in domain for consistency and reuse.

type CreatePredictionRequest struct {
	Ticker   string   `json:"ticker" validate:"required,alphanum,uppercase,min=1,max=10"`
	Horizons []string `json:"horizons" default:"[\"1mo\",\"6mo\",\"1yr\",\"2yr\",\"3yr\",\"4yr\",\"5yr\"]" validate:"min=1,max=7,dive,oneof=1mo 6mo 1yr 2yr 3yr 4yr 5yr"`
}

type HistoryRequest struct {
	Range string `query:"range" json:"range" default:"1y" validate:"oneof=1mo 6mo 1y 2y 5y 10y max"`
}
