package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250414-091500",
		Description: "Account billing contact fields",
		Up: []string{
			`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS billing_name TEXT`,
			`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS billing_email TEXT`,
			`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS billing_country TEXT`,
			`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS billing_tax_number TEXT`,
		},
	})
}
