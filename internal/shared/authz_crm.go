package shared

// CRM record permissions, grouped per module the back-office exposes.
const (
	PermLeadsView   = "leads.view"
	PermLeadsEdit   = "leads.edit"
	PermLeadsDelete = "leads.delete"

	PermCompaniesView   = "companies.view"
	PermCompaniesEdit   = "companies.edit"
	PermCompaniesDelete = "companies.delete"

	PermDealsView   = "deals.view"
	PermDealsEdit   = "deals.edit"
	PermDealsDelete = "deals.delete"

	PermTasksView   = "tasks.view"
	PermTasksEdit   = "tasks.edit"
	PermTasksDelete = "tasks.delete"

	PermTicketsView   = "tickets.view"
	PermTicketsEdit   = "tickets.edit"
	PermTicketsDelete = "tickets.delete"

	PermCatalogView   = "catalog.view"
	PermCatalogManage = "catalog.manage"

	PermDashboardsView = "dashboards.view"
)

// CRMScopes lists the record-level permissions of the CRM modules.
func CRMScopes() []string {
	return []string{
		PermLeadsView, PermLeadsEdit, PermLeadsDelete,
		PermCompaniesView, PermCompaniesEdit, PermCompaniesDelete,
		PermDealsView, PermDealsEdit, PermDealsDelete,
		PermTasksView, PermTasksEdit, PermTasksDelete,
		PermTicketsView, PermTicketsEdit, PermTicketsDelete,
		PermCatalogView, PermCatalogManage,
		PermDashboardsView,
	}
}
