package enums

// UserRole is the role claim carried by access tokens.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = set[UserRole]{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return userRoles.has(r) }

func ParseUserRole(raw string) (UserRole, error) {
	return userRoles.parse(raw, "user role")
}

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderConfirmation NotificationType = "order_confirmation"
	NotificationTypeOrderUpdate       NotificationType = "order_update"
	NotificationTypeOrderCancelled    NotificationType = "order_cancelled"
)

var notificationTypes = set[NotificationType]{
	NotificationTypeOrderConfirmation,
	NotificationTypeOrderUpdate,
	NotificationTypeOrderCancelled,
}

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }
