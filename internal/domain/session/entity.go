package session

import "slices"

// Credential is produced once per successful login exchange.
type Credential struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Role         string
}

// Company is the tenant a user belongs to.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserProfile is the server's view of the signed-in user. The console only
// patches it locally; the next profile fetch supersedes any patch.
type UserProfile struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	CompanyID string  `json:"companyId"`
	Company   Company `json:"company"`
	IsActive  bool    `json:"isActive"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// UserPatch is a local, optimistic edit of the profile. Nil fields are left untouched.
type UserPatch struct {
	Email     *string
	Name      *string
	Role      *string
	CompanyID *string
	Company   *Company
	IsActive  *bool
	UpdatedAt *string
}

// Apply returns a copy of u with the patch applied.
func (p UserPatch) Apply(u UserProfile) UserProfile {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.CompanyID != nil {
		u.CompanyID = *p.CompanyID
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.UpdatedAt != nil {
		u.UpdatedAt = *p.UpdatedAt
	}
	return u
}

// Permissions is the server's current opinion of what the user may do.
// Capabilities are compared by membership only. Restrictions are advisory
// and never gate access.
type Permissions struct {
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
	Restrictions []string `json:"restrictions"`
}

// Has reports whether capability is granted.
func (p *Permissions) Has(capability string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Capabilities, capability)
}

// Clone returns a deep copy.
func (p *Permissions) Clone() *Permissions {
	if p == nil {
		return nil
	}
	return &Permissions{
		Role:         p.Role,
		Capabilities: slices.Clone(p.Capabilities),
		Restrictions: slices.Clone(p.Restrictions),
	}
}

// Snapshot is a read-only copy of the session. Absent fields are nil.
type Snapshot struct {
	User            *UserProfile `json:"user"`
	Permissions     *Permissions `json:"permissions"`
	Token           *string      `json:"token"`
	RefreshToken    *string      `json:"refreshToken"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

// AccessToken returns the token or "" when absent.
func (s Snapshot) AccessToken() string {
	if s.Token == nil {
		return ""
	}
	return *s.Token
}

// Clone returns a deep copy so callers cannot reach the container's memory.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{IsAuthenticated: s.IsAuthenticated}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	out.Permissions = s.Permissions.Clone()
	if s.Token != nil {
		t := *s.Token
		out.Token = &t
	}
	if s.RefreshToken != nil {
		t := *s.RefreshToken
		out.RefreshToken = &t
	}
	return out
}

// Partial is a partial write to the credential store. Nil fields are not written.
type Partial struct {
	Token        *string
	RefreshToken *string
	User         *UserProfile
	Permissions  *Permissions
}

// Profile is the payload of the profile endpoint.
type Profile struct {
	User        UserProfile `json:"user"`
	Permissions Permissions `json:"permissions"`
}

// StringPtr is a small helper for building Partial and UserPatch values.
func StringPtr(s string) *string {
	return &s
}
