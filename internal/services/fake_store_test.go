package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// memDB is an in-memory stand-in for Postgres. Transactions are serialized
// by txMu, which plays the role of the row locks, and roll back by restoring
// a snapshot taken at begin.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID int64
	now    time.Time

	orgs         map[int64]models.Organization
	users        map[int64]models.User
	resources    map[int64]models.Resource
	rules        map[int64]models.PricingRule
	memberships  map[int64]models.UserClubMembership
	bookings     map[int64]models.Booking
	reservations map[int64]models.Reservation
	lineItems    map[int64]models.BookingLineItem
	participants map[int64]models.BookingParticipant
	maintenance  map[int64]models.MaintenanceSchedule
	coupons      map[int64]models.Coupon
	wallets      map[int64]models.UserWallet
	walletTxns   map[int64]models.WalletTransaction
	topUps       map[int64]models.WalletTopUp

	// failOn makes the named store method return the error once
	failOn map[string]error
}

func newMemDB() *memDB {
	db := &memDB{
		now:    time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC), // a Monday
		failOn: map[string]error{},
	}
	db.reset()
	return db
}

func (db *memDB) reset() {
	db.orgs = map[int64]models.Organization{}
	db.users = map[int64]models.User{}
	db.resources = map[int64]models.Resource{}
	db.rules = map[int64]models.PricingRule{}
	db.memberships = map[int64]models.UserClubMembership{}
	db.bookings = map[int64]models.Booking{}
	db.reservations = map[int64]models.Reservation{}
	db.lineItems = map[int64]models.BookingLineItem{}
	db.participants = map[int64]models.BookingParticipant{}
	db.maintenance = map[int64]models.MaintenanceSchedule{}
	db.coupons = map[int64]models.Coupon{}
	db.wallets = map[int64]models.UserWallet{}
	db.walletTxns = map[int64]models.WalletTransaction{}
	db.topUps = map[int64]models.WalletTopUp{}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memSnapshot struct {
	nextID       int64
	orgs         map[int64]models.Organization
	users        map[int64]models.User
	resources    map[int64]models.Resource
	rules        map[int64]models.PricingRule
	memberships  map[int64]models.UserClubMembership
	bookings     map[int64]models.Booking
	reservations map[int64]models.Reservation
	lineItems    map[int64]models.BookingLineItem
	participants map[int64]models.BookingParticipant
	maintenance  map[int64]models.MaintenanceSchedule
	coupons      map[int64]models.Coupon
	wallets      map[int64]models.UserWallet
	walletTxns   map[int64]models.WalletTransaction
	topUps       map[int64]models.WalletTopUp
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		nextID:       db.nextID,
		orgs:         copyMap(db.orgs),
		users:        copyMap(db.users),
		resources:    copyMap(db.resources),
		rules:        copyMap(db.rules),
		memberships:  copyMap(db.memberships),
		bookings:     copyMap(db.bookings),
		reservations: copyMap(db.reservations),
		lineItems:    copyMap(db.lineItems),
		participants: copyMap(db.participants),
		maintenance:  copyMap(db.maintenance),
		coupons:      copyMap(db.coupons),
		wallets:      copyMap(db.wallets),
		walletTxns:   copyMap(db.walletTxns),
		topUps:       copyMap(db.topUps),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID = s.nextID
	db.orgs, db.users, db.resources = s.orgs, s.users, s.resources
	db.rules, db.memberships = s.rules, s.memberships
	db.bookings, db.reservations, db.lineItems, db.participants = s.bookings, s.reservations, s.lineItems, s.participants
	db.maintenance, db.coupons = s.maintenance, s.coupons
	db.wallets, db.walletTxns, db.topUps = s.wallets, s.walletTxns, s.topUps
}

// WithinTx implements Transactor
func (db *memDB) WithinTx(ctx context.Context, fn func(q database.Queryer) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	if err := fn(nil); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

// Queryer implements Transactor; the fake ignores the handle
func (db *memDB) Queryer() database.Queryer { return nil }

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// fail must be called with mu held
func (db *memDB) fail(method string) error {
	if err, ok := db.failOn[method]; ok {
		delete(db.failOn, method)
		return err
	}
	return nil
}

func tenantMatches(tenantID, orgID int64) bool {
	return tenantID == database.AllTenants || tenantID == orgID
}

// ---------------------------------------------------------------------------
// seeding helpers
// ---------------------------------------------------------------------------

func (db *memDB) addOrg(slug string) models.Organization {
	db.mu.Lock()
	defer db.mu.Unlock()
	org := models.Organization{ID: db.id(), Slug: slug, Name: slug}
	db.orgs[org.ID] = org
	return org
}

func (db *memDB) addUser(orgID int64, name string) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	org := orgID
	user := models.User{ID: db.id(), OrganizationID: &org, Name: name, Email: strings.ToLower(name) + "@example.com"}
	db.users[user.ID] = user
	return user
}

func (db *memDB) addResource(orgID int64, open, closing string, block int) models.Resource {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := models.Resource{
		ID:               db.id(),
		OrganizationID:   orgID,
		Name:             "Court",
		Status:           models.ResourceStatusEnabled,
		DailyStartTime:   models.MustClockTime(open),
		DailyEndTime:     models.MustClockTime(closing),
		TimeBlockMinutes: block,
	}
	db.resources[r.ID] = r
	return r
}

func (db *memDB) setResourceStatus(id int64, status models.ResourceStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.resources[id]
	r.Status = status
	db.resources[id] = r
}

func (db *memDB) addRule(rule models.PricingRule) models.PricingRule {
	db.mu.Lock()
	defer db.mu.Unlock()
	if rule.ID == 0 {
		rule.ID = db.id()
	}
	rule.IsActive = true
	db.rules[rule.ID] = rule
	return rule
}

func (db *memDB) addMembership(orgID, userID int64, name string, pct int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	mt := &models.ClubMembershipType{ID: db.id(), OrganizationID: orgID, Name: name, CourtFeeDiscountPercent: pct}
	m := models.UserClubMembership{
		ID:               db.id(),
		UserID:           userID,
		MembershipTypeID: mt.ID,
		ValidFrom:        db.now.AddDate(0, -1, 0),
		Status:           models.MembershipActive,
		MembershipType:   mt,
	}
	db.memberships[m.ID] = m
}

func (db *memDB) addMaintenance(resourceID int64, start, end time.Time, status models.MaintenanceStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	m := models.MaintenanceSchedule{ID: db.id(), ResourceID: resourceID, StartDatetime: start, EndDatetime: end, Status: status}
	db.maintenance[m.ID] = m
}

func (db *memDB) addCoupon(c models.Coupon) models.Coupon {
	db.mu.Lock()
	defer db.mu.Unlock()
	c.ID = db.id()
	db.coupons[c.ID] = c
	return c
}

func (db *memDB) addWallet(orgID, userID, balance int64) models.UserWallet {
	db.mu.Lock()
	defer db.mu.Unlock()
	w := models.UserWallet{ID: db.id(), OrganizationID: orgID, UserID: userID, BalanceCents: balance}
	db.wallets[w.ID] = w
	if balance != 0 {
		t := models.WalletTransaction{ID: db.id(), WalletID: w.ID, AmountCents: balance, Type: models.WalletCredit, BalanceAfterCents: balance}
		db.walletTxns[t.ID] = t
	}
	return w
}

func (db *memDB) wallet(id int64) models.UserWallet {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.wallets[id]
}

func (db *memDB) walletFor(orgID, userID int64) (models.UserWallet, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, w := range db.wallets {
		if w.OrganizationID == orgID && w.UserID == userID {
			return w, true
		}
	}
	return models.UserWallet{}, false
}

func (db *memDB) transactionsFor(walletID int64) []models.WalletTransaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.WalletTransaction
	for _, t := range db.walletTxns {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *memDB) rawBooking(id int64) models.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.bookings[id]
}

func (db *memDB) updateRawBooking(id int64, fn func(b *models.Booking)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	b := db.bookings[id]
	fn(&b)
	db.bookings[id] = b
}

func (db *memDB) coupon(id int64) models.Coupon {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.coupons[id]
}

func (db *memDB) countReservations(bookingID int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, r := range db.reservations {
		if r.BookingID == bookingID {
			n++
		}
	}
	return n
}

func (db *memDB) failNext(method string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failOn[method] = err
}

// ---------------------------------------------------------------------------
// stores
// ---------------------------------------------------------------------------

type fakeResources struct{ db *memDB }

func (f fakeResources) GetByID(ctx context.Context, q database.Queryer, tenantID, resourceID int64) (*models.Resource, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	r, ok := f.db.resources[resourceID]
	if !ok || !tenantMatches(tenantID, r.OrganizationID) {
		return nil, models.NotFoundf("resource", resourceID)
	}
	return &r, nil
}

func (f fakeResources) LockByID(ctx context.Context, q database.Queryer, tenantID, resourceID int64) (*models.Resource, error) {
	return f.GetByID(ctx, q, tenantID, resourceID)
}

type fakeRules struct{ db *memDB }

func (f fakeRules) ListActiveForResource(ctx context.Context, q database.Queryer, tenantID, resourceID int64) ([]models.PricingRule, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.PricingRule
	for _, r := range f.db.rules {
		if !r.IsActive || !tenantMatches(tenantID, r.OrganizationID) {
			continue
		}
		if r.ResourceID == nil || *r.ResourceID == resourceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeMemberships struct{ db *memDB }

func (f fakeMemberships) GetActiveForUser(ctx context.Context, q database.Queryer, tenantID, userID int64, day time.Time) (*models.UserClubMembership, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var best *models.UserClubMembership
	for _, m := range f.db.memberships {
		m := m
		if m.UserID != userID || !m.IsActiveOn(day) || !tenantMatches(tenantID, m.MembershipType.OrganizationID) {
			continue
		}
		if best == nil || m.MembershipType.CourtFeeDiscountPercent > best.MembershipType.CourtFeeDiscountPercent {
			best = &m
		}
	}
	return best, nil
}

type fakeUsers struct{ db *memDB }

func (f fakeUsers) GetUserByID(ctx context.Context, q database.Queryer, tenantID, userID int64) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok || (u.OrganizationID != nil && !tenantMatches(tenantID, *u.OrganizationID)) {
		return nil, models.NotFoundf("user", userID)
	}
	return &u, nil
}

func (f fakeUsers) GetOrganizationByID(ctx context.Context, q database.Queryer, organizationID int64) (*models.Organization, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orgs[organizationID]
	if !ok {
		return nil, models.NotFoundf("organization", organizationID)
	}
	return &o, nil
}

func (f fakeUsers) GetFirstOrganization(ctx context.Context, q database.Queryer) (*models.Organization, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var first *models.Organization
	for _, o := range f.db.orgs {
		o := o
		if first == nil || o.ID < first.ID {
			first = &o
		}
	}
	if first == nil {
		return nil, models.NotFoundf("organization", "any")
	}
	return first, nil
}

type fakeBookings struct{ db *memDB }

func (f fakeBookings) Create(ctx context.Context, q database.Queryer, b *models.Booking) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.db.fail("CreateBooking"); err != nil {
		return err
	}
	b.ID = f.db.id()
	b.CreatedAt = f.db.now
	b.UpdatedAt = f.db.now
	stored := *b
	stored.Reservations, stored.LineItems, stored.Participants, stored.Resource = nil, nil, nil, nil
	f.db.bookings[b.ID] = stored
	return nil
}

func (f fakeBookings) Update(ctx context.Context, q database.Queryer, b *models.Booking) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.db.fail("UpdateBooking"); err != nil {
		return err
	}
	if _, ok := f.db.bookings[b.ID]; !ok {
		return models.NotFoundf("booking", b.ID)
	}
	if b.AccessCode != nil {
		for id, other := range f.db.bookings {
			if id != b.ID && other.AccessCode != nil && *other.AccessCode == *b.AccessCode {
				return fmt.Errorf("%w: duplicate access code", models.ErrConflict)
			}
		}
	}
	b.UpdatedAt = f.db.now
	stored := *b
	stored.Reservations, stored.LineItems, stored.Participants, stored.Resource = nil, nil, nil, nil
	f.db.bookings[b.ID] = stored
	return nil
}

// hydrate must be called with mu held
func (f fakeBookings) hydrate(b models.Booking) *models.Booking {
	for _, r := range f.db.reservations {
		if r.BookingID == b.ID {
			b.Reservations = append(b.Reservations, r)
		}
	}
	for _, li := range f.db.lineItems {
		if li.BookingID == b.ID {
			b.LineItems = append(b.LineItems, li)
		}
	}
	for _, p := range f.db.participants {
		if p.BookingID == b.ID {
			b.Participants = append(b.Participants, p)
		}
	}
	sort.Slice(b.Reservations, func(i, j int) bool { return b.Reservations[i].ID < b.Reservations[j].ID })
	sort.Slice(b.LineItems, func(i, j int) bool { return b.LineItems[i].ID < b.LineItems[j].ID })
	sort.Slice(b.Participants, func(i, j int) bool { return b.Participants[i].ID < b.Participants[j].ID })
	return &b
}

func (f fakeBookings) GetByID(ctx context.Context, q database.Queryer, tenantID, bookingID int64) (*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.bookings[bookingID]
	if !ok || !tenantMatches(tenantID, b.OrganizationID) {
		return nil, models.NotFoundf("booking", bookingID)
	}
	return f.hydrate(b), nil
}

func (f fakeBookings) LockByID(ctx context.Context, q database.Queryer, tenantID, bookingID int64) (*models.Booking, error) {
	return f.GetByID(ctx, q, tenantID, bookingID)
}

func (f fakeBookings) GetByAccessCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, b := range f.db.bookings {
		if b.AccessCode != nil && *b.AccessCode == code && tenantMatches(tenantID, b.OrganizationID) {
			return f.hydrate(b), nil
		}
	}
	return nil, models.NotFoundf("booking with access code", code)
}

func (f fakeBookings) LockByPaymentReference(ctx context.Context, q database.Queryer, reference string) (*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, b := range f.db.bookings {
		if b.PaymentReference != nil && *b.PaymentReference == reference {
			return f.hydrate(b), nil
		}
	}
	return nil, models.NotFoundf("booking with payment reference", reference)
}

func (f fakeBookings) ListByUser(ctx context.Context, q database.Queryer, tenantID, userID int64, limit, offset int) ([]models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Booking
	for _, b := range f.db.bookings {
		if b.UserID == userID && tenantMatches(tenantID, b.OrganizationID) {
			out = append(out, *f.hydrate(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []models.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeBookings) ListExpiredPending(ctx context.Context, q database.Queryer, cutoff time.Time) ([]models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Booking
	for _, b := range f.db.bookings {
		if b.Status == models.BookingStatusPending && b.PaymentStatus == models.PaymentStatusPending && b.CreatedAt.Before(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeBookings) ListRefundPending(ctx context.Context, q database.Queryer, method models.PaymentMethodKind) ([]models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Booking
	for _, b := range f.db.bookings {
		if b.PaymentStatus == models.PaymentStatusRefundPending && b.PaymentMethodKind != nil && *b.PaymentMethodKind == method {
			out = append(out, *f.hydrate(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeBookings) AccessCodeExists(ctx context.Context, q database.Queryer, code string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, b := range f.db.bookings {
		if b.AccessCode != nil && *b.AccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeBookings) MarkAccessCodeUsed(ctx context.Context, q database.Queryer, bookingID int64, at time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.bookings[bookingID]
	if !ok || b.AccessCodeUsedAt != nil {
		return false, nil
	}
	b.AccessCodeUsedAt = &at
	if b.CheckInAt == nil {
		b.CheckInAt = &at
	}
	f.db.bookings[bookingID] = b
	return true, nil
}

func (f fakeBookings) CreateReservation(ctx context.Context, q database.Queryer, res *models.Reservation) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	res.ID = f.db.id()
	f.db.reservations[res.ID] = *res
	return nil
}

func (f fakeBookings) DeleteReservations(ctx context.Context, q database.Queryer, bookingID int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, r := range f.db.reservations {
		if r.BookingID == bookingID {
			delete(f.db.reservations, id)
		}
	}
	return nil
}

// liveReservations must be called with mu held
func (f fakeBookings) liveReservations(resourceID int64, date time.Time) []models.Reservation {
	day := models.DateOnly(date)
	var out []models.Reservation
	for _, r := range f.db.reservations {
		if r.ResourceID != resourceID || !models.DateOnly(r.ReservationDate).Equal(day) {
			continue
		}
		if b, ok := f.db.bookings[r.BookingID]; ok && b.Status.IsActive() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (f fakeBookings) ListActiveReservations(ctx context.Context, q database.Queryer, resourceID int64, date time.Time) ([]models.Reservation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.liveReservations(resourceID, date), nil
}

func (f fakeBookings) FindConflicts(ctx context.Context, q database.Queryer, resourceID int64, date time.Time, iv models.Interval, excludeBookingID int64) ([]models.Reservation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Reservation
	for _, r := range f.liveReservations(resourceID, date) {
		if excludeBookingID != 0 && r.BookingID == excludeBookingID {
			continue
		}
		if r.StartTime < iv.End && r.EndTime > iv.Start {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f fakeBookings) CreateLineItem(ctx context.Context, q database.Queryer, item *models.BookingLineItem) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.db.fail("CreateLineItem"); err != nil {
		return err
	}
	item.ID = f.db.id()
	f.db.lineItems[item.ID] = *item
	return nil
}

func (f fakeBookings) CreateParticipant(ctx context.Context, q database.Queryer, p *models.BookingParticipant) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p.ID = f.db.id()
	f.db.participants[p.ID] = *p
	return nil
}

type fakeMaintenance struct{ db *memDB }

func (f fakeMaintenance) ListBlocking(ctx context.Context, q database.Queryer, resourceID int64, from, to time.Time) ([]models.MaintenanceSchedule, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.MaintenanceSchedule
	for _, m := range f.db.maintenance {
		if m.ResourceID == resourceID && m.Status.IsBlocking() && m.StartDatetime.Before(to) && m.EndDatetime.After(from) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeCoupons struct{ db *memDB }

func (f fakeCoupons) GetByCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*models.Coupon, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, c := range f.db.coupons {
		if strings.EqualFold(c.Code, strings.TrimSpace(code)) && tenantMatches(tenantID, c.OrganizationID) {
			return &c, nil
		}
	}
	return nil, models.NotFoundf("coupon", code)
}

func (f fakeCoupons) LockByCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*models.Coupon, error) {
	return f.GetByCode(ctx, q, tenantID, code)
}

func (f fakeCoupons) IncrementUsage(ctx context.Context, q database.Queryer, couponID int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c := f.db.coupons[couponID]
	c.UsageCount++
	f.db.coupons[couponID] = c
	return nil
}

type fakeWallets struct{ db *memDB }

func (f fakeWallets) GetByUser(ctx context.Context, q database.Queryer, organizationID, userID int64) (*models.UserWallet, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, w := range f.db.wallets {
		if w.OrganizationID == organizationID && w.UserID == userID {
			return &w, nil
		}
	}
	return nil, models.NotFoundf("wallet for user", userID)
}

func (f fakeWallets) Create(ctx context.Context, q database.Queryer, organizationID, userID int64) (*models.UserWallet, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	w := models.UserWallet{ID: f.db.id(), OrganizationID: organizationID, UserID: userID, CreatedAt: f.db.now}
	f.db.wallets[w.ID] = w
	return &w, nil
}

func (f fakeWallets) GetByID(ctx context.Context, q database.Queryer, walletID int64) (*models.UserWallet, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	w, ok := f.db.wallets[walletID]
	if !ok {
		return nil, models.NotFoundf("wallet", walletID)
	}
	return &w, nil
}

func (f fakeWallets) LockByID(ctx context.Context, q database.Queryer, walletID int64) (*models.UserWallet, error) {
	return f.GetByID(ctx, q, walletID)
}

func (f fakeWallets) UpdateBalance(ctx context.Context, q database.Queryer, walletID, balanceCents int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	w := f.db.wallets[walletID]
	w.BalanceCents = balanceCents
	f.db.wallets[walletID] = w
	return nil
}

func (f fakeWallets) InsertTransaction(ctx context.Context, q database.Queryer, tx *models.WalletTransaction) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.db.fail("InsertTransaction"); err != nil {
		return err
	}
	tx.ID = f.db.id()
	tx.CreatedAt = f.db.now
	f.db.walletTxns[tx.ID] = *tx
	return nil
}

func (f fakeWallets) ListTransactions(ctx context.Context, q database.Queryer, walletID int64, limit int) ([]models.WalletTransaction, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.WalletTransaction
	for _, t := range f.db.walletTxns {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeWallets) SumTransactions(ctx context.Context, q database.Queryer, walletID int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var sum int64
	for _, t := range f.db.walletTxns {
		if t.WalletID == walletID {
			sum += t.AmountCents
		}
	}
	return sum, nil
}

func (f fakeWallets) CreateTopUp(ctx context.Context, q database.Queryer, topUp *models.WalletTopUp) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	topUp.ID = f.db.id()
	topUp.CreatedAt = f.db.now
	f.db.topUps[topUp.ID] = *topUp
	return nil
}

func (f fakeWallets) LockTopUpByReference(ctx context.Context, q database.Queryer, reference string) (*models.WalletTopUp, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, t := range f.db.topUps {
		if t.Reference == reference {
			return &t, nil
		}
	}
	return nil, models.NotFoundf("top-up", reference)
}

func (f fakeWallets) CompleteTopUp(ctx context.Context, q database.Queryer, topUpID int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t := f.db.topUps[topUpID]
	t.Status = models.TopUpCompleted
	f.db.topUps[topUpID] = t
	return nil
}

var (
	_ Transactor       = (*memDB)(nil)
	_ ResourceStore    = fakeResources{}
	_ PricingRuleStore = fakeRules{}
	_ MembershipStore  = fakeMemberships{}
	_ UserStore        = fakeUsers{}
	_ BookingStore     = fakeBookings{}
	_ MaintenanceStore = fakeMaintenance{}
	_ CouponStore      = fakeCoupons{}
	_ WalletStore      = fakeWallets{}
)

// ---------------------------------------------------------------------------
// collaborators
// ---------------------------------------------------------------------------

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *recordingNotifier) events() []BookingEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]BookingEvent, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Event)
	}
	return out
}

func (n *recordingNotifier) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fakeGateway struct {
	mu        sync.Mutex
	status    string
	err       error
	refundErr error
	checkouts []CheckoutRequest
	refunds   map[string]int64
	webhook   *WebhookResult
	seq       int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	g.checkouts = append(g.checkouts, req)
	status := g.status
	if status == "" {
		status = "pending"
	}
	ref := fmt.Sprintf("ref_%d", g.seq)
	return &CheckoutSession{Reference: ref, CheckoutURL: "https://pay.example.com/" + ref, Status: status}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, reference string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	if g.refunds == nil {
		g.refunds = map[string]int64{}
	}
	g.refunds[reference] += amountCents
	return nil
}

func (g *fakeGateway) ParseWebhook(ctx context.Context, body []byte) (*WebhookResult, error) {
	if g.webhook == nil {
		return nil, fmt.Errorf("bad payload")
	}
	return g.webhook, nil
}

// ---------------------------------------------------------------------------
// fixture
// ---------------------------------------------------------------------------

type fixture struct {
	db       *memDB
	notifier *recordingNotifier
	gateway  *fakeGateway

	pricing      *PricingService
	availability *AvailabilityService
	coupons      *CouponService
	accessCodes  *AccessCodeService
	wallet       *WalletService
	booking      *BookingService
	payments     *PaymentService

	org      models.Organization
	user     models.User
	resource models.Resource
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newFixture seeds one organization with a user and an 08:00-22:00 court
// with 60-minute blocks.
func newFixture() *fixture {
	db := newMemDB()
	logger := quietLogger()
	clock := func() time.Time { return db.now }

	f := &fixture{db: db, notifier: &recordingNotifier{}, gateway: &fakeGateway{}}

	resources := fakeResources{db}
	bookings := fakeBookings{db}
	users := fakeUsers{db}
	maintenance := fakeMaintenance{db}
	wallets := fakeWallets{db}

	f.pricing = NewPricingService(fakeRules{db}, fakeMemberships{db}, DefaultPriceCents, logger)
	f.pricing.now = clock
	f.availability = NewAvailabilityService(db, resources, bookings, maintenance, nil, logger)
	f.coupons = NewCouponService(db, fakeCoupons{db}, bookings, logger)
	f.coupons.now = clock
	f.accessCodes = NewAccessCodeService(db, bookings, users, 30*time.Minute, logger)
	f.accessCodes.now = clock
	f.wallet = NewWalletService(db, wallets, users, "$", logger)
	f.booking = NewBookingService(db, resources, users, bookings, f.pricing, f.availability,
		f.coupons, f.accessCodes, f.wallet, f.notifier, "$", logger)
	f.booking.now = clock
	f.payments = NewPaymentService(db, bookings, users, wallets, f.booking, f.coupons, f.wallet,
		f.gateway, "USD", f.notifier, logger)
	f.payments.now = clock

	f.org = db.addOrg("riverside")
	f.user = db.addUser(f.org.ID, "Jane")
	f.resource = db.addResource(f.org.ID, "08:00", "22:00", 60)
	return f
}

func (f *fixture) tomorrow() time.Time {
	return models.DateOnly(f.db.now).AddDate(0, 0, 1)
}

func (f *fixture) input(date time.Time, start, end string) *models.CreateBookingInput {
	return &models.CreateBookingInput{
		UserID:     f.user.ID,
		ResourceID: f.resource.ID,
		Date:       date,
		Interval:   models.Interval{Start: models.MustClockTime(start), End: models.MustClockTime(end)},
	}
}

// paidWalletBooking creates a booking and pays it from a funded wallet
func (f *fixture) paidWalletBooking(start, end string, funds int64) (*models.Booking, models.UserWallet) {
	wallet := f.db.addWallet(f.org.ID, f.user.ID, funds)
	b, err := f.booking.CreateBooking(context.Background(), f.org.ID, f.input(f.tomorrow(), start, end))
	if err != nil {
		panic(err)
	}
	resp, err := f.payments.ProcessBookingPayment(context.Background(), f.org.ID, b.ID, &models.PayBookingRequest{PaymentMethod: "wallet"})
	if err != nil {
		panic(err)
	}
	return resp.Booking, wallet
}
