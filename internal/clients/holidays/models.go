package holidays

// Holiday is one entry of the BrasilAPI /feriados response.
type Holiday struct {
	Date string `json:"date"` // YYYY-MM-DD
	Name string `json:"name"`
	Type string `json:"type"` // national, ...
}
