package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Store is the read access the notifier needs to find cabin chats and arrivals.
type Store interface {
	GetCabin(ctx context.Context, id int64) (*models.Cabin, error)
	ListReservations(ctx context.Context) ([]*models.Reservation, error)
}

// Notifier tells cabin owners about reservation changes on Telegram. Cabins
// without a chat ID are skipped.
type Notifier struct {
	sender       domain.TelegramSender
	store        Store
	reminderHour int
	logger       *zerolog.Logger
	now          func() time.Time
}

func New(sender domain.TelegramSender, store Store, reminderHour int, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		sender:       sender,
		store:        store,
		reminderHour: reminderHour,
		logger:       logger,
		now:          time.Now,
	}
}

// NewBotSender connects to the Bot API with the configured token.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Register subscribes the notifier to reservation events.
func (n *Notifier) Register(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventReservationCreated,
		events.EventReservationUpdated,
		events.EventReservationCancelled,
	} {
		bus.Subscribe(eventType, n.handleReservation)
	}
}

func (n *Notifier) handleReservation(e *events.Event) error {
	var p events.ReservationEventPayload
	if err := e.Decode(&p); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cabin, err := n.store.GetCabin(ctx, p.CabinID)
	if err != nil {
		return fmt.Errorf("notify: load cabin %d: %w", p.CabinID, err)
	}
	if cabin.TelegramChatID == 0 {
		return nil
	}

	return n.send(cabin.TelegramChatID, formatReservationMessage(e.Type, p))
}

func (n *Notifier) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send error")
		return fmt.Errorf("notify: send to %d: %w", chatID, err)
	}
	return nil
}

// StartReminders sends the next-day arrival list once a day at reminderHour
// local time until ctx is done.
func (n *Notifier) StartReminders(ctx context.Context) {
	timer := time.NewTimer(untilHour(n.now(), n.reminderHour))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			tomorrow := models.DateOf(n.now().AddDate(0, 0, 1))
			sent := n.SendArrivalReminders(ctx, tomorrow)
			n.logger.Info().Str("day", tomorrow.String()).Int("cabins", sent).Msg("Arrival reminders sent")
			timer.Reset(untilHour(n.now(), n.reminderHour))
		}
	}
}

// SendArrivalReminders messages every cabin with arrivals on day and returns
// how many cabins were notified.
func (n *Notifier) SendArrivalReminders(ctx context.Context, day models.Date) int {
	reservations, err := n.store.ListReservations(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("reminder: list reservations error")
		return 0
	}

	byCabin := make(map[int64][]*models.Reservation)
	for _, r := range reservations {
		if r.Cabin == nil || !r.CheckIn.Equal(day) {
			continue
		}
		byCabin[r.Cabin.ID] = append(byCabin[r.Cabin.ID], r)
	}

	cabinIDs := make([]int64, 0, len(byCabin))
	for id := range byCabin {
		cabinIDs = append(cabinIDs, id)
	}
	sort.Slice(cabinIDs, func(i, j int) bool { return cabinIDs[i] < cabinIDs[j] })

	sent := 0
	for _, id := range cabinIDs {
		cabin, err := n.store.GetCabin(ctx, id)
		if err != nil {
			n.logger.Error().Err(err).Int64("cabin_id", id).Msg("reminder: load cabin error")
			continue
		}
		if cabin.TelegramChatID == 0 {
			continue
		}
		if err := n.send(cabin.TelegramChatID, formatArrivals(cabin, day, byCabin[id])); err == nil {
			sent++
		}
	}
	return sent
}

func formatReservationMessage(eventType string, p events.ReservationEventPayload) string {
	var title string
	switch eventType {
	case events.EventReservationCreated:
		title = "Rezervare noua"
	case events.EventReservationUpdated:
		title = "Rezervare modificata"
	case events.EventReservationCancelled:
		title = "Rezervare anulata"
	default:
		title = "Rezervare"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d la %s\n", title, p.ReservationID, p.CabinName)
	fmt.Fprintf(&b, "Perioada: %s - %s\n", displayDate(p.CheckIn), displayDate(p.CheckOut))
	fmt.Fprintf(&b, "Camere: %s\n", joinInts(p.RoomNumbers))
	fmt.Fprintf(&b, "Oaspeti: %d\n", p.GuestCount)
	fmt.Fprintf(&b, "Total: %s RON", p.TotalPrice)
	return b.String()
}

func formatArrivals(cabin *models.Cabin, day models.Date, reservations []*models.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sosiri la %s pe %s:\n", cabin.Name, day.Time().Format("02.01.2006"))
	for _, r := range reservations {
		numbers := make([]int, 0, len(r.Rooms))
		for _, room := range r.Rooms {
			numbers = append(numbers, room.Number)
		}
		fmt.Fprintf(&b, "- #%d: %d oaspeti, camere %s, %d nopti\n", r.ID, r.GuestCount, joinInts(numbers), r.Nights())
	}
	return strings.TrimRight(b.String(), "\n")
}

func displayDate(s string) string {
	d, err := models.ParseDate(s)
	if err != nil {
		return s
	}
	return d.Time().Format("02.01.2006")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

func untilHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
