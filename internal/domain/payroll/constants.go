package payroll

const (
	SlipStatusGenerated = "generated"
	SlipStatusPaid      = "paid"
	SlipStatusCancelled = "cancelled"

	CalculationFixed      = "fixed"
	CalculationPercentage = "percentage"

	TaxBasisPeriod = "period"
	TaxBasisAnnual = "annual"

	IncomeTaxLineName = "Income Tax"

	WarningNegativeNet          = "negative_net"
	WarningTaxBracketUnresolved = "tax_bracket_unresolved"
	WarningTaxBracketOverlap    = "tax_bracket_overlap"

	ReasonDuplicateSlip         = "duplicate_slip"
	ReasonEmployeeNotFound      = "employee_not_found"
	ReasonEmployeeInactive      = "employee_inactive"
	ReasonInvalidRecord         = "invalid_record"
	ReasonMisconfiguredTaxTable = "misconfigured_tax_table"
	ReasonPersistenceError      = "persistence_error"
	ReasonGenerationFailed      = "generation_failed"

	JobPayrollRun = "payroll_run"

	monthsPerYear = 12
)
