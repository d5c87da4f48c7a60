package policy

// Role — роль вызывающего из JWT claim.
type Role string

const (
	// RolePublisher — обычный пользователь поставщика
	RolePublisher Role = "Publisher"
	// RolePublisherAdmin — администратор поставщика
	RolePublisherAdmin Role = "PublisherAdmin"
	// RoleSuperadmin — суперадмин каталога
	RoleSuperadmin Role = "Superadmin"
)

// Caller — аутентифицированный вызывающий, построенный из JWT claims.
// Нулевое значение — анонимный вызывающий.
type Caller struct {
	// Subject — идентификатор пользователя (claim sub)
	Subject string
	// Role — роль вызывающего
	Role Role
	// Publisher — URI поставщика вызывающего (пусто для суперадмина)
	Publisher string
	// Email — e-mail вызывающего
	Email string
}

// IsAuthenticated проверяет, что вызывающий аутентифицирован.
func (c Caller) IsAuthenticated() bool {
	return c.Subject != ""
}

// IsSuperadmin проверяет роль суперадмина.
func (c Caller) IsSuperadmin() bool {
	return c.Role == RoleSuperadmin
}

// CanPublish проверяет право управлять записями своего поставщика.
func (c Caller) CanPublish() bool {
	switch c.Role {
	case RolePublisher, RolePublisherAdmin, RoleSuperadmin:
		return c.IsAuthenticated()
	default:
		return false
	}
}

// Policy возвращает политику доступа вызывающего.
func (c Caller) Policy() Policy {
	switch {
	case c.IsSuperadmin():
		return All()
	case c.IsAuthenticated() && c.Publisher != "":
		return Publisher(c.Publisher)
	default:
		return Anonymous()
	}
}
