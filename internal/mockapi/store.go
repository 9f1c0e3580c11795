package mockapi

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/transport-saas-ms/console/internal/domain/session"
)

// roleCapabilities is the capability set the stand-in grants per role.
var roleCapabilities = map[string][]string{
	session.RoleAdmin: {
		session.CapCreateUser, session.CapUpdateUser, session.CapDeleteUser,
		session.CapManageCompanies,
		session.CapCreateTrip, session.CapManageTrip, session.CapViewAllTrips,
		session.CapManageExpenses, session.CapViewReports,
	},
	session.RoleAccountant: {
		session.CapViewAllTrips, session.CapManageExpenses, session.CapViewReports,
	},
	session.RoleDriver: {
		session.CapViewOwnTrips, session.CapViewOwnExpenses, session.CapCreateExpense,
	},
	session.RoleUser: {},
}

var roleRestrictions = map[string][]string{
	session.RoleDriver: {"OWN_TRIPS_ONLY"},
}

type account struct {
	profile      session.UserProfile
	passwordHash string
}

// Directory is the in-memory user base.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]*account
	byID    map[string]*account
	hasher  *passwordHasher
	now     func() time.Time
}

// SeedUser describes an account created at startup.
type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     string
	// Company is empty for accounts still awaiting assignment.
	Company string
}

// DefaultSeed is a small fleet covering every role.
func DefaultSeed() []SeedUser {
	return []SeedUser{
		{Name: "Ada Admin", Email: "admin@acme.test", Password: "admin-pass", Role: session.RoleAdmin, Company: "Acme Haulage"},
		{Name: "Carl Counter", Email: "accountant@acme.test", Password: "accountant-pass", Role: session.RoleAccountant, Company: "Acme Haulage"},
		{Name: "Dana Driver", Email: "driver@acme.test", Password: "driver-pass", Role: session.RoleDriver, Company: "Acme Haulage"},
		{Name: "Nico Newcomer", Email: "new@acme.test", Password: "newcomer-pass", Role: session.RoleUser},
	}
}

func NewDirectory(now func() time.Time, seed ...SeedUser) *Directory {
	if now == nil {
		now = time.Now
	}
	d := &Directory{
		byEmail: make(map[string]*account),
		byID:    make(map[string]*account),
		hasher:  newPasswordHasher(),
		now:     now,
	}
	companies := make(map[string]session.Company)
	for _, s := range seed {
		var company session.Company
		if s.Company != "" {
			c, ok := companies[s.Company]
			if !ok {
				c = session.Company{ID: uuid.NewString(), Name: s.Company}
				companies[s.Company] = c
			}
			company = c
		}
		d.add(s.Name, s.Email, s.Password, s.Role, company)
	}
	return d
}

func (d *Directory) add(name, email, password, role string, company session.Company) *account {
	ts := d.now().UTC().Format(time.RFC3339)
	a := &account{
		profile: session.UserProfile{
			ID:        uuid.NewString(),
			Email:     strings.ToLower(email),
			Name:      name,
			Role:      role,
			CompanyID: company.ID,
			Company:   company,
			IsActive:  true,
			CreatedAt: ts,
			UpdatedAt: ts,
		},
		passwordHash: d.hash(password),
	}
	d.byEmail[a.profile.Email] = a
	d.byID[a.profile.ID] = a
	return a
}

// Register creates an account with the requested role and no company. It
// reports false when the email is taken.
func (d *Directory) Register(name, email, password, role string) (session.UserProfile, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byEmail[strings.ToLower(email)]; exists {
		return session.UserProfile{}, false
	}
	return d.add(name, email, password, role, session.Company{}).profile, true
}

// Authenticate checks an email/password pair.
func (d *Directory) Authenticate(email, password string) (session.UserProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.byEmail[strings.ToLower(email)]
	if !ok || !a.profile.IsActive || !d.hasher.Verify(password, a.passwordHash) {
		return session.UserProfile{}, false
	}
	return a.profile, true
}

// Get returns a user by id.
func (d *Directory) Get(id string) (session.UserProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.byID[id]
	if !ok {
		return session.UserProfile{}, false
	}
	return a.profile, true
}

// ChangePassword replaces the password after checking the current one.
func (d *Directory) ChangePassword(id, current, next string) (found, matched bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.byID[id]
	if !ok {
		return false, false
	}
	if !d.hasher.Verify(current, a.passwordHash) {
		return true, false
	}
	a.passwordHash = d.hash(next)
	a.profile.UpdatedAt = d.now().UTC().Format(time.RFC3339)
	return true, true
}

// SetPassword replaces the password unconditionally.
func (d *Directory) SetPassword(id, next string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.byID[id]
	if !ok {
		return false
	}
	a.passwordHash = d.hash(next)
	a.profile.UpdatedAt = d.now().UTC().Format(time.RFC3339)
	return true
}

// hash panics only if crypto/rand fails, which the runtime already treats
// as fatal.
func (d *Directory) hash(password string) string {
	h, err := d.hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	return h
}

// Lookup returns a user by email.
func (d *Directory) Lookup(email string) (session.UserProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return session.UserProfile{}, false
	}
	return a.profile, true
}

// Permissions returns the permission snapshot for a user.
func Permissions(u session.UserProfile) session.Permissions {
	caps := append([]string{}, roleCapabilities[u.Role]...)
	restrictions := append([]string{}, roleRestrictions[u.Role]...)
	return session.Permissions{Role: u.Role, Capabilities: caps, Restrictions: restrictions}
}
