package server

// ValidateOfferRequest carries the offer URL to validate.
type ValidateOfferRequest struct {
	URL string `json:"url" example:"https://www.amazon.com/dp/B08N5WRWNW"`
}

// BulkValidateRequest lists offer URLs for a bulk run. BatchSize defaults to 5.
type BulkValidateRequest struct {
	URLs      []string `json:"urls" example:"[\"https://vendor.hop.clickbank.net/\",\"https://www.jvzoo.com/c/1/2\"]"`
	BatchSize int      `json:"batch_size" example:"5"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"network not supported"`
}
