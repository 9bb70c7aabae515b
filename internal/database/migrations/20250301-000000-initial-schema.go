package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250301-000000",
		Description: "Initial schema",
		Up: []string{
			// Accounts - one credit balance per user
			// user_id references the auth provider's user id (no FK, users live elsewhere)
			`CREATE TABLE IF NOT EXISTS accounts (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID UNIQUE NOT NULL,
				credits DOUBLE PRECISION NOT NULL DEFAULT 0,
				currency TEXT NOT NULL DEFAULT 'USD',
				plan_type VARCHAR(20) DEFAULT 'free',
				plan_status VARCHAR(20) DEFAULT 'active',
				next_refill_time TIMESTAMPTZ,
				plan_start_date TIMESTAMPTZ,
				plan_end_date TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id)`,

			// Transactions - audit trail for every credit movement
			`CREATE TABLE IF NOT EXISTS transactions (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				type TEXT NOT NULL,
				amount DOUBLE PRECISION NOT NULL,
				previous_balance DOUBLE PRECISION NOT NULL,
				new_balance DOUBLE PRECISION NOT NULL,
				stripe_payment_id TEXT UNIQUE,
				reference_id TEXT,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)`,

			// Usage records - one row per billable service invocation
			`CREATE TABLE IF NOT EXISTS usage_records (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID NOT NULL,
				account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				service_name TEXT NOT NULL,
				service_description TEXT,
				base_cost DOUBLE PRECISION NOT NULL,
				multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
				actual_charge DOUBLE PRECISION NOT NULL,
				usage_data TEXT,
				reference_id TEXT,
				project_id UUID,
				transaction_id UUID,
				status TEXT NOT NULL DEFAULT 'completed',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_user_id ON usage_records(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_service_name ON usage_records(service_name)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_project_id ON usage_records(project_id)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_created_at ON usage_records(created_at)`,

			// Projects - user content projects
			`CREATE TABLE IF NOT EXISTS projects (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID NOT NULL,
				name TEXT NOT NULL,
				url TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id)`,

			// Search console account links
			`CREATE TABLE IF NOT EXISTS gsc_accounts (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				site_url TEXT NOT NULL,
				credentials TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_gsc_accounts_project_id ON gsc_accounts(project_id)`,

			// Monitoring rollup maintained by the reconciler
			`CREATE TABLE IF NOT EXISTS monitoring_project_stats (
				project_id UUID PRIMARY KEY,
				user_id UUID NOT NULL,
				blog_1000 INTEGER NOT NULL DEFAULT 0,
				blog_1500 INTEGER NOT NULL DEFAULT 0,
				blog_2500 INTEGER NOT NULL DEFAULT 0,
				gsc_connected INTEGER NOT NULL DEFAULT 0,
				cms_connected INTEGER NOT NULL DEFAULT 0,
				gsc_clicks INTEGER NOT NULL DEFAULT 0,
				gsc_impressions INTEGER NOT NULL DEFAULT 0,
				gsc_ctr DOUBLE PRECISION NOT NULL DEFAULT 0,
				gsc_position DOUBLE PRECISION NOT NULL DEFAULT 0,
				project_name TEXT NOT NULL,
				project_url TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_monitoring_stats_user_id ON monitoring_project_stats(user_id)`,
		},
	})
}
