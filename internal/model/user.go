package model

import "time"

// Role names stored in users.role.  Roles form a ladder: admin outranks
// angler, and authorization guards compare levels rather than exact names.
const (
    RoleAngler = "angler"
    RoleAdmin  = "admin"
)

// Account status values stored in users.account_status.  Only active
// accounts pass authentication; suspended and deactivated accounts are
// rejected regardless of token validity.
const (
    StatusActive      = "active"
    StatusSuspended   = "suspended"
    StatusDeactivated = "deactivated"
)

// Subscription plan values stored in users.subscription_plan.
const (
    PlanFree   = "free"
    PlanPro    = "pro"
    PlanMaster = "master"
)

// RoleLevel maps a role name to its rank.  Unknown roles rank below every
// valid role so they never satisfy a guard.
func RoleLevel(role string) int {
    switch role {
    case RoleAngler:
        return 1
    case RoleAdmin:
        return 2
    }
    return 0
}

// PlanLevel maps a subscription plan to its tier rank.  Unknown plans are
// treated as free tier.
func PlanLevel(plan string) int {
    switch plan {
    case PlanPro:
        return 2
    case PlanMaster:
        return 3
    }
    return 1
}

// ValidRole reports whether the role name belongs to the closed enumeration.
func ValidRole(role string) bool { return role == RoleAngler || role == RoleAdmin }

// ValidStatus reports whether the account status belongs to the closed enumeration.
func ValidStatus(s string) bool {
    return s == StatusActive || s == StatusSuspended || s == StatusDeactivated
}

// ValidPlan reports whether the subscription plan belongs to the closed enumeration.
func ValidPlan(p string) bool { return p == PlanFree || p == PlanPro || p == PlanMaster }

// User mirrors the `users` table.  Repositories return this struct; handlers
// convert it to response DTOs so the password hash never leaves the server.
type User struct {
    ID                uint64    // users.id
    Email             string    // users.email (unique, lower-cased)
    PasswordHash      string    // users.password_hash (bcrypt)
    FirstName         string    // users.first_name
    LastName          string    // users.last_name
    Role              string    // users.role
    AccountStatus     string    // users.account_status
    SubscriptionPlan  string    // users.subscription_plan
    CatchesCount      int       // users.catches_count (current month)
    CatchLimitMonthly int       // users.catch_limit_monthly (free tier quota)
    StripeCustomerID  string    // users.stripe_customer_id ("" until billing is set up)
    Preferences       []byte    // users.preferences (raw JSON, nil when unset)
    ProfilePictureURL string    // users.profile_picture_url
    CreatedAt         time.Time // users.created_at
    UpdatedAt         time.Time // users.updated_at
}

// Unlimited reports whether the user's plan bypasses the monthly catch quota.
func (u User) Unlimited() bool {
    return u.SubscriptionPlan == PlanPro || u.SubscriptionPlan == PlanMaster
}
