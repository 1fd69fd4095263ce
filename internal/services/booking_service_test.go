package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		day := f.tomorrow()

		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "14:00", "15:00"))
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusPending, b.Status)
		assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
		assert.Equal(t, models.VisibilityPrivate, b.Visibility)
		assert.Equal(t, f.org.ID, b.OrganizationID)
		assert.Nil(t, b.AccessCode)
		require.Len(t, b.Reservations, 1)
		assert.Equal(t, "14:00", b.Reservations[0].StartTime.String())
		require.Len(t, b.LineItems, 1)
		assert.Equal(t, models.LineItemCourtFee, b.LineItems[0].Type)
		assert.Equal(t, DefaultPriceCents, b.TotalCents())
		require.NotNil(t, b.Resource)

		assert.Equal(t, []BookingEvent{EventBookingCreated}, f.notifier.events())
	})

	t.Run("Overlap Is Unavailable", func(t *testing.T) {
		f := newFixture()
		day := f.tomorrow()
		_, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "14:00", "15:00"))
		require.NoError(t, err)

		ok, err := f.availability.CheckAvailability(ctx, f.org.ID, f.resource.ID, day, clockRange("14:30", "15:30"))
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "14:30", "15:30"))
		assert.ErrorIs(t, err, models.ErrSlotUnavailable)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("Membership Discount Line", func(t *testing.T) {
		f := newFixture()
		f.db.addMembership(f.org.ID, f.user.ID, "Gold", 20)

		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)
		require.Len(t, b.LineItems, 2)
		assert.Equal(t, int64(-1000), b.LineItems[1].TotalCents)
		assert.Equal(t, "Discount: Membership: Gold", b.LineItems[1].Description)
		assert.Equal(t, int64(4000), b.TotalCents())
	})

	t.Run("Participants And Coupon", func(t *testing.T) {
		f := newFixture()
		coupon := f.db.addCoupon(models.Coupon{
			OrganizationID: f.org.ID, Code: "SPRING10", DiscountType: models.DiscountPercentage,
			DiscountValue: 10, IsActive: true,
		})

		in := f.input(f.tomorrow(), "10:00", "11:00")
		in.CouponCode = "spring10"
		in.Visibility = models.VisibilityPublic
		in.Participants = []models.BookingParticipant{{Name: "Sam"}, {Name: "Alex"}}

		b, err := f.booking.CreateBooking(ctx, f.org.ID, in)
		require.NoError(t, err)
		assert.Equal(t, models.VisibilityPublic, b.Visibility)
		assert.Len(t, b.Participants, 2)
		assert.Equal(t, int64(4500), b.TotalCents())
		assert.Equal(t, 1, f.db.coupon(coupon.ID).UsageCount)
	})

	t.Run("Invalid Interval", func(t *testing.T) {
		f := newFixture()
		_, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "15:00", "14:00"))
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("Unknown User", func(t *testing.T) {
		f := newFixture()
		in := f.input(f.tomorrow(), "10:00", "11:00")
		in.UserID = 9999
		_, err := f.booking.CreateBooking(ctx, f.org.ID, in)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Empty(t, f.notifier.events())
	})

	t.Run("Other Tenant Cannot Book", func(t *testing.T) {
		f := newFixture()
		other := f.db.addOrg("elsewhere")
		_, err := f.booking.CreateBooking(ctx, other.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Failed Line Item Rolls Back", func(t *testing.T) {
		f := newFixture()
		f.db.failNext("CreateLineItem", errors.New("disk full"))

		_, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.Error(t, err)

		slots, err := f.availability.GetAvailableSlots(ctx, f.org.ID, f.resource.ID, f.tomorrow(), 60)
		require.NoError(t, err)
		assert.Len(t, slots, 14, "no reservation survives the rollback")
	})

	t.Run("Notifier Failure Does Not Fail Booking", func(t *testing.T) {
		f := newFixture()
		f.notifier.err = errors.New("broker down")
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
	})
}

func TestCreateBookingConcurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	day := f.tomorrow()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "18:00", "19:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrSlotUnavailable):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Wallet Refund Restores Balance", func(t *testing.T) {
		f := newFixture()
		b, wallet := f.paidWalletBooking("10:00", "11:00", 8000)
		require.Equal(t, int64(3000), f.db.wallet(wallet.ID).BalanceCents)

		cancelled, refund, err := f.booking.CancelBooking(ctx, f.org.ID, b.ID, true)
		require.NoError(t, err)
		assert.Equal(t, DefaultPriceCents, refund)
		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
		assert.Equal(t, models.PaymentStatusRefunded, cancelled.PaymentStatus)
		assert.Equal(t, int64(8000), f.db.wallet(wallet.ID).BalanceCents)

		txns := f.db.transactionsFor(wallet.ID)
		last := txns[len(txns)-1]
		assert.Equal(t, models.WalletRefund, last.Type)
		assert.Equal(t, DefaultPriceCents, last.AmountCents)
		assert.Equal(t, int64(8000), last.BalanceAfterCents)
		require.NotNil(t, last.BookingID)
		assert.Equal(t, b.ID, *last.BookingID)

		n := f.notifier.last()
		assert.Equal(t, EventBookingCancelled, n.Event)
		assert.Equal(t, DefaultPriceCents, n.RefundCents)
	})

	t.Run("Unpaid Booking Has No Refund", func(t *testing.T) {
		f := newFixture()
		wallet := f.db.addWallet(f.org.ID, f.user.ID, 1000)
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)

		cancelled, refund, err := f.booking.CancelBooking(ctx, f.org.ID, b.ID, true)
		require.NoError(t, err)
		assert.Zero(t, refund)
		assert.Equal(t, models.PaymentStatusPending, cancelled.PaymentStatus)
		assert.Len(t, f.db.transactionsFor(wallet.ID), 1)
	})

	t.Run("Refund Not Requested", func(t *testing.T) {
		f := newFixture()
		b, wallet := f.paidWalletBooking("10:00", "11:00", 5000)

		cancelled, refund, err := f.booking.CancelBooking(ctx, f.org.ID, b.ID, false)
		require.NoError(t, err)
		assert.Zero(t, refund)
		assert.Equal(t, models.PaymentStatusPaid, cancelled.PaymentStatus)
		assert.Zero(t, f.db.wallet(wallet.ID).BalanceCents)
	})

	t.Run("Card Payment Left Refund Pending", func(t *testing.T) {
		f := newFixture()
		f.gateway.status = "successful"
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)
		_, err = f.payments.ProcessBookingPayment(ctx, f.org.ID, b.ID, &models.PayBookingRequest{PaymentMethod: "card"})
		require.NoError(t, err)

		cancelled, refund, err := f.booking.CancelBooking(ctx, f.org.ID, b.ID, true)
		require.NoError(t, err)
		assert.Equal(t, DefaultPriceCents, refund)
		assert.Equal(t, models.PaymentStatusRefundPending, cancelled.PaymentStatus)
	})

	t.Run("Ledger Failure Rolls Back Cancellation", func(t *testing.T) {
		f := newFixture()
		b, wallet := f.paidWalletBooking("10:00", "11:00", 5000)
		f.db.failNext("InsertTransaction", errors.New("connection reset"))

		_, _, err := f.booking.CancelBooking(ctx, f.org.ID, b.ID, true)
		require.Error(t, err)

		stored := f.db.rawBooking(b.ID)
		assert.Equal(t, models.BookingStatusConfirmed, stored.Status)
		assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
		assert.Zero(t, f.db.wallet(wallet.ID).BalanceCents)
	})

	t.Run("Cancelled Twice", func(t *testing.T) {
		f := newFixture()
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)
		_, _, err = f.booking.CancelBooking(ctx, f.org.ID, b.ID, true)
		require.NoError(t, err)

		_, _, err = f.booking.CancelBooking(ctx, f.org.ID, b.ID, true)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("Other Tenant Not Found", func(t *testing.T) {
		f := newFixture()
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)
		other := f.db.addOrg("elsewhere")

		_, _, err = f.booking.CancelBooking(ctx, other.ID, b.ID, true)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestBookingTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("Confirm Issues Access Code", func(t *testing.T) {
		f := newFixture()
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)

		confirmed, err := f.booking.ConfirmBooking(ctx, f.org.ID, b.ID, models.CashPayment())
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)
		assert.Equal(t, models.PaymentStatusPaid, confirmed.PaymentStatus)
		require.NotNil(t, confirmed.AccessCode)
		method, ok := confirmed.PaymentMethod()
		require.True(t, ok)
		assert.Equal(t, models.PaymentMethodCash, method.Kind)
	})

	t.Run("Complete And No Show", func(t *testing.T) {
		f := newFixture()
		first, _ := f.paidWalletBooking("10:00", "11:00", 10000)
		second, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "12:00", "13:00"))
		require.NoError(t, err)
		_, err = f.booking.ConfirmBooking(ctx, f.org.ID, second.ID, models.CashPayment())
		require.NoError(t, err)

		done, err := f.booking.CompleteBooking(ctx, f.org.ID, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCompleted, done.Status)

		missed, err := f.booking.MarkNoShow(ctx, f.org.ID, second.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusNoShow, missed.Status)

		_, _, err = f.booking.CancelBooking(ctx, f.org.ID, first.ID, true)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("Pending Cannot Complete", func(t *testing.T) {
		f := newFixture()
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)

		_, err = f.booking.CompleteBooking(ctx, f.org.ID, b.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.Equal(t, models.BookingStatusPending, f.db.rawBooking(b.ID).Status)
	})

	t.Run("Check In", func(t *testing.T) {
		f := newFixture()
		b, _ := f.paidWalletBooking("10:00", "11:00", 5000)

		checked, err := f.booking.CheckIn(ctx, f.org.ID, b.ID)
		require.NoError(t, err)
		require.NotNil(t, checked.CheckInAt)
		assert.True(t, checked.CheckInAt.Equal(f.db.now))
		assert.Equal(t, EventBookingCheckedIn, f.notifier.last().Event)
	})
}

func TestRescheduleBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Moves Reservation", func(t *testing.T) {
		f := newFixture()
		day := f.tomorrow()
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "10:00", "11:00"))
		require.NoError(t, err)

		moved, err := f.booking.RescheduleBooking(ctx, f.org.ID, b.ID, day, clockRange("10:30", "11:30"))
		require.NoError(t, err)
		require.Len(t, moved.Reservations, 1)
		assert.Equal(t, "10:30", moved.Reservations[0].StartTime.String())
		assert.Equal(t, 1, f.db.countReservations(b.ID))
		assert.Equal(t, DefaultPriceCents, moved.TotalCents())
		assert.Equal(t, EventBookingRescheduled, f.notifier.last().Event)

		ok, err := f.availability.CheckAvailability(ctx, f.org.ID, f.resource.ID, day, clockRange("10:00", "10:30"))
		require.NoError(t, err)
		assert.True(t, ok, "old interval is released")
	})

	t.Run("Target Taken", func(t *testing.T) {
		f := newFixture()
		day := f.tomorrow()
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "10:00", "11:00"))
		require.NoError(t, err)
		_, err = f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "12:00", "13:00"))
		require.NoError(t, err)

		_, err = f.booking.RescheduleBooking(ctx, f.org.ID, b.ID, day, clockRange("12:00", "13:00"))
		assert.ErrorIs(t, err, models.ErrSlotUnavailable)
		assert.Equal(t, 1, f.db.countReservations(b.ID))
	})

	t.Run("Cancelled Booking", func(t *testing.T) {
		f := newFixture()
		b, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(f.tomorrow(), "10:00", "11:00"))
		require.NoError(t, err)
		_, _, err = f.booking.CancelBooking(ctx, f.org.ID, b.ID, false)
		require.NoError(t, err)

		_, err = f.booking.RescheduleBooking(ctx, f.org.ID, b.ID, f.tomorrow(), clockRange("12:00", "13:00"))
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestBookingReads(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	day := f.tomorrow()

	for _, start := range []string{"08:00", "10:00", "12:00"} {
		end := models.MustClockTime(start).Add(60).String()
		_, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(day, start, end))
		require.NoError(t, err)
	}

	list, err := f.booking.ListBookingsForUser(ctx, f.org.ID, f.user.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID)

	list, err = f.booking.ListBookingsForUser(ctx, f.org.ID, f.user.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	summary, err := f.booking.GetBookingSummary(ctx, f.org.ID, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultPriceCents, summary.TotalCents)
	assert.Equal(t, "$50.00", summary.TotalFormatted)
	assert.Len(t, summary.LineItems, 1)

	_, err = f.booking.GetBooking(ctx, f.org.ID, 424242)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExpirePendingBookings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	day := f.tomorrow()

	stale, err := f.booking.CreateBooking(ctx, f.org.ID, f.input(day, "08:00", "09:00"))
	require.NoError(t, err)
	paid, _ := f.paidWalletBooking("10:00", "11:00", 5000)

	expired, err := f.booking.ExpirePendingBookings(ctx, f.db.now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, models.BookingStatusCancelled, f.db.rawBooking(stale.ID).Status)
	assert.Equal(t, models.BookingStatusConfirmed, f.db.rawBooking(paid.ID).Status)

	expired, err = f.booking.ExpirePendingBookings(ctx, f.db.now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, expired)
}
