package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"rawatib/internal/domain/auth"
	"rawatib/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	tenantID, err := ensureTenant(ctx, pool, cfg.SeedTenantName)
	if err != nil {
		return err
	}

	roleIDs, err := ensureRoles(ctx, pool, tenantID)
	if err != nil {
		return err
	}

	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}

	if err := ensureAdminUser(ctx, pool, tenantID, roleIDs[auth.RolePayrollAdmin], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}

	if cfg.Environment == "development" {
		if err := ensureDemoRoster(ctx, pool, tenantID); err != nil {
			return err
		}
	}

	return nil
}

func ensureTenant(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM tenants WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, "INSERT INTO tenants (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool, tenantID string) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range auth.RolePermissions {
		var id string
		err := pool.QueryRow(ctx, "SELECT id FROM roles WHERE tenant_id = $1 AND name = $2", tenantID, roleName).Scan(&id)
		if err == nil {
			roleIDs[roleName] = id
			continue
		}

		err = pool.QueryRow(ctx, "INSERT INTO roles (tenant_id, name) VALUES ($1, $2) RETURNING id", tenantID, roleName).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, perm := range perms {
			_, err := pool.Exec(ctx, `
        INSERT INTO role_permissions (role_id, permission)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
      `, roleID, perm)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, tenantID, roleID, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE tenant_id = $1 AND email = $2", tenantID, email).Scan(&id)
	if err == nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
    INSERT INTO users (tenant_id, role_id, email, password_hash, status)
    VALUES ($1,$2,$3,$4,'active')
  `, tenantID, roleID, strings.ToLower(email), hash)
	return err
}

// ensureDemoRoster inserts a small sample roster so a fresh development
// database can run a payroll cycle end to end.
func ensureDemoRoster(ctx context.Context, pool *pgxpool.Pool, tenantID string) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE tenant_id = $1", tenantID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	employees := []struct {
		first, last, title string
		salary             float64
		saudi              bool
	}{
		{"Ahmed", "Al-Harbi", "Software Engineer", 12000, true},
		{"Sara", "Al-Qahtani", "Accountant", 9000, true},
		{"John", "Mathews", "Site Supervisor", 7500, false},
	}
	for _, emp := range employees {
		_, err := pool.Exec(ctx, `
      INSERT INTO employees (tenant_id, first_name, last_name, job_title, base_salary, is_saudi, gosi_eligible, gosi_basic_wage, gosi_housing_wage, status)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'active')
    `, tenantID, emp.first, emp.last, emp.title, emp.salary, emp.saudi, true, emp.salary, emp.salary*0.25)
		if err != nil {
			return err
		}
	}

	if _, err := pool.Exec(ctx, `
    INSERT INTO allowance_policies (tenant_id, name, job_title_filter, monthly_amount, effective_from, active)
    VALUES ($1, 'Transportation', '', 500, now() - interval '1 year', true)
  `, tenantID); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `
    INSERT INTO shift_rules (tenant_id, name, weekday_multiplier, weekend_multiplier, holiday_multiplier, weekend_days)
    VALUES ($1, 'Standard Shift', 1.5, 2.0, 2.5, '{5,6}')
  `, tenantID)
	return err
}
