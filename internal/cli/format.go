package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// FormatAmount renders an amount in CFA francs with French digit grouping
// and no fractional digits, e.g. "150 000 FCFA".
func FormatAmount(amount float64) string {
	rounded := math.Round(amount)
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}
	return sign + groupThousands(strconv.FormatFloat(rounded, 'f', 0, 64)) + " FCFA"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatDate renders a timestamp as a French long date with hours and
// minutes, e.g. "1 mars 2026 à 10:05".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%d %s %d à %02d:%02d",
		t.Day(), frenchMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// BadgeKind is the color family of a status badge.
type BadgeKind string

// Badge kinds.
const (
	BadgeWarning   BadgeKind = "warning"
	BadgeInfo      BadgeKind = "info"
	BadgePrimary   BadgeKind = "primary"
	BadgeSuccess   BadgeKind = "success"
	BadgeSecondary BadgeKind = "secondary"
	BadgeDanger    BadgeKind = "danger"
)

// Badge is the display form of a transaction status.
type Badge struct {
	Label string
	Kind  BadgeKind
}

var statusBadges = map[model.TransactionStatus]Badge{
	model.StatusPending:          {Label: "En attente", Kind: BadgeWarning},
	model.StatusPaymentPending:   {Label: "Paiement en attente", Kind: BadgeWarning},
	model.StatusPaymentConfirmed: {Label: "Paiement confirmé", Kind: BadgeInfo},
	model.StatusDelivered:        {Label: "Livré", Kind: BadgePrimary},
	model.StatusCompleted:        {Label: "Terminé", Kind: BadgeSuccess},
	model.StatusCancelled:        {Label: "Annulé", Kind: BadgeSecondary},
	model.StatusDisputed:         {Label: "En litige", Kind: BadgeDanger},
}

// StatusBadge returns the badge of a status. Unknown statuses show their
// raw value as a secondary badge.
func StatusBadge(status model.TransactionStatus) Badge {
	if b, ok := statusBadges[status]; ok {
		return b
	}
	return Badge{Label: string(status), Kind: BadgeSecondary}
}

var badgeColors = map[BadgeKind]lipgloss.Color{
	BadgeWarning:   WarningColor,
	BadgeInfo:      InfoColor,
	BadgePrimary:   PrimaryColor,
	BadgeSuccess:   SuccessColor,
	BadgeSecondary: SubtleColor,
	BadgeDanger:    ErrorColor,
}

// Render draws the badge as a colored pill.
func (b Badge) Render() string {
	color, ok := badgeColors[b.Kind]
	if !ok {
		color = SubtleColor
	}
	return BadgeStyle.Background(color).Render(b.Label)
}
