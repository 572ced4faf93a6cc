package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"respondent": {
		"test:view",
		"assignment:take",
		"assignment:view-own",
		"user:change_password",
	},
	"admin": {
		"*", // everything: authoring, assigning, grading, reports, users
	},
}
