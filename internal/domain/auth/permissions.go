package auth

const (
	RolePayrollAdmin   = "payroll_admin"
	RolePayrollOfficer = "payroll_officer"
	RoleApprover       = "approver"
	RoleViewer         = "viewer"
)

const (
	PermPayrollRead      = "payroll.read"
	PermPayrollCalculate = "payroll.calculate"
	PermPayrollApprove   = "payroll.approve"
	PermPayrollLock      = "payroll.lock"
	PermLoansRead        = "loans.read"
	PermLoansWrite       = "loans.write"
	PermDocumentsRead    = "documents.read"
	PermDocumentsWrite   = "documents.write"
	PermAuditRead        = "audit.read"
	PermSystemAdmin      = "admin.system"
)

var DefaultPermissions = []string{
	PermPayrollRead,
	PermPayrollCalculate,
	PermPayrollApprove,
	PermPayrollLock,
	PermLoansRead,
	PermLoansWrite,
	PermDocumentsRead,
	PermDocumentsWrite,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleViewer: {
		PermPayrollRead,
		PermLoansRead,
		PermDocumentsRead,
	},
	RolePayrollOfficer: {
		PermPayrollRead,
		PermPayrollCalculate,
		PermLoansRead,
		PermLoansWrite,
		PermDocumentsRead,
		PermDocumentsWrite,
	},
	RoleApprover: {
		PermPayrollRead,
		PermPayrollApprove,
		PermPayrollLock,
		PermLoansRead,
		PermDocumentsRead,
		PermAuditRead,
	},
	RolePayrollAdmin: {
		PermPayrollRead,
		PermPayrollCalculate,
		PermPayrollApprove,
		PermPayrollLock,
		PermLoansRead,
		PermLoansWrite,
		PermDocumentsRead,
		PermDocumentsWrite,
		PermAuditRead,
		PermSystemAdmin,
	},
}
