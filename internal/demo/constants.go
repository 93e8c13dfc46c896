package demo

// HTTP status codes the session driver distinguishes.
const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusUnprocessableEntity = 422
)

// PercentageMultiplier converts ratios to percentages in reports.
const PercentageMultiplier = 100.0
