package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"wellnest/core/internal/api"
	"wellnest/core/internal/models"
)

const listTime = "Mon 2 Jan 15:04"

func runServices(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("services", s)
	var q api.ServiceQuery
	cmd.fs.StringVar(&q.Search, "search", "", "Match name or description")
	cmd.fs.StringVar(&q.Category, "category", "", "Category, e.g. massage or yoga")
	cmd.fs.StringVar(&q.Postcode, "postcode", "", "Only services in the same postcode district")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	services, err := a.client.ListServices(ctx, q)
	if err != nil {
		return cmd.fail(err)
	}
	if len(services) == 0 {
		fmt.Fprintln(s.out, "no services found")
		return 0
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tMINUTES\tPOSTCODE\tRATING")
	for _, svc := range services {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%.1f\n",
			svc.ID, svc.Name, svc.Category, svc.Price.StringFixed(2), svc.DurationMinutes, svc.Postcode, svc.Rating)
	}
	_ = tw.Flush()
	return 0
}

func runBookings(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("bookings", s)
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	bookings, err := a.client.ListBookings(ctx)
	if err != nil {
		return cmd.fail(err)
	}
	if len(bookings) == 0 {
		fmt.Fprintln(s.out, "no bookings")
		return 0
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVICE\tSTARTS\tSTATUS")
	for _, b := range bookings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.ServiceID, b.StartsAt.Local().Format(listTime), b.Status)
	}
	_ = tw.Flush()
	return 0
}

func runBook(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("book", s)
	var serviceID, at string
	cmd.fs.StringVar(&serviceID, "service", "", "Service id")
	cmd.fs.StringVar(&at, "at", "", "Start time, RFC3339")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if serviceID == "" || at == "" {
		return cmd.usage("-service and -at are required")
	}
	startsAt, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return cmd.usage("-at must be RFC3339, e.g. 2026-05-01T10:00:00Z")
	}

	booking, err := a.client.CreateBooking(ctx, serviceID, startsAt)
	if err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintf(s.out, "booked %s for %s (%s)\n", booking.ServiceID, booking.StartsAt.Local().Format(listTime), booking.ID)
	return 0
}

func runCancel(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("cancel", s)
	var id string
	cmd.fs.StringVar(&id, "id", "", "Booking id")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if id == "" {
		return cmd.usage("-id is required")
	}
	booking, err := a.client.CancelBooking(ctx, id)
	if err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintf(s.out, "booking %s %s\n", booking.ID, booking.Status)
	return 0
}

func runMessages(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("messages", s)
	var conversationID, send string
	cmd.fs.StringVar(&conversationID, "conversation", "", "Conversation id; lists conversations when empty")
	cmd.fs.StringVar(&send, "send", "", "Message to send to the conversation")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if conversationID == "" {
		if send != "" {
			return cmd.usage("-send needs -conversation")
		}
		convs, err := a.client.ListConversations(ctx)
		if err != nil {
			return cmd.fail(err)
		}
		tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tUPDATED")
		for _, c := range convs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Title, c.UpdatedAt.Local().Format(listTime))
		}
		_ = tw.Flush()
		return 0
	}

	if strings.TrimSpace(send) != "" {
		if _, err := a.client.SendMessage(ctx, conversationID, send); err != nil {
			return cmd.fail(err)
		}
	}
	msgs, err := a.client.ListMessages(ctx, conversationID)
	if err != nil {
		return cmd.fail(err)
	}
	for _, m := range msgs {
		fmt.Fprintf(s.out, "[%s] %s: %s\n", m.SentAt.Local().Format(listTime), m.Sender, m.Body)
	}
	return 0
}

func runNotifications(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("notifications", s)
	var markRead string
	cmd.fs.StringVar(&markRead, "read", "", "Mark the notification with this id as read")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if markRead != "" {
		if err := a.client.MarkNotificationRead(ctx, markRead); err != nil {
			return cmd.fail(err)
		}
	}

	notes, err := a.client.ListNotifications(ctx)
	if err != nil {
		return cmd.fail(err)
	}
	if len(notes) == 0 {
		fmt.Fprintln(s.out, "no notifications")
		return 0
	}
	for _, n := range notes {
		marker := "*"
		if n.Read {
			marker = " "
		}
		fmt.Fprintf(s.out, "%s %s  %s: %s\n", marker, n.ID, n.Title, n.Body)
	}
	return 0
}

func runInvest(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("invest", s)
	var locationID, amount string
	cmd.fs.StringVar(&locationID, "location", "", "Location id; lists locations when empty")
	cmd.fs.StringVar(&amount, "amount", "", "Amount to invest, e.g. 250.00")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	locations, err := a.client.ListLocations(ctx)
	if err != nil {
		return cmd.fail(err)
	}

	if locationID == "" {
		tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCITY\tRAISED\tTARGET\tMINIMUM")
		for _, l := range locations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.Name, l.City,
				l.RaisedAmount.StringFixed(2), l.TargetAmount.StringFixed(2), l.MinInvestment.StringFixed(2))
		}
		_ = tw.Flush()
		return 0
	}

	var loc *models.Location
	for i := range locations {
		if locations[i].ID == locationID {
			loc = &locations[i]
			break
		}
	}
	if loc == nil {
		return cmd.usage(fmt.Sprintf("unknown location %q", locationID))
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return cmd.usage("-amount must be a decimal number")
	}

	inv, err := a.client.Invest(ctx, *loc, value)
	if err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintf(s.out, "invested %s in %s (%s)\n", inv.Amount.StringFixed(2), loc.Name, inv.ID)
	return 0
}
