package ranking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/pkg/logging"
)

// Action is a user interaction that moves a post's popularity.
type Action string

const (
	ActionView      Action = "view"
	ActionLike      Action = "like"
	ActionUnlike    Action = "unlike"
	ActionComment   Action = "comment"
	ActionUncomment Action = "uncomment"
)

var actionWeights = map[Action]float64{
	ActionView:      1,
	ActionLike:      3,
	ActionUnlike:    -3,
	ActionComment:   2,
	ActionUncomment: -2,
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := actionWeights[a]; !ok {
		return "", &content.ValidationError{Err: fmt.Errorf("unknown engagement action"), Detail: s}
	}
	return a, nil
}

// Weight returns the score delta applied for the action.
func (a Action) Weight() float64 {
	return actionWeights[a]
}

// Tracker fans engagement out to every score-backed list.
type Tracker struct {
	store  *ScoreStore
	lists  []content.ListName
	logger *zap.Logger
}

// NewTracker creates a tracker writing to the given lists (all score lists when empty).
func NewTracker(store *ScoreStore, lists ...content.ListName) *Tracker {
	if len(lists) == 0 {
		lists = content.ScoreLists()
	}
	return &Tracker{
		store:  store,
		lists:  lists,
		logger: logging.WithComponent("engagement-tracker"),
	}
}

// Record applies the action's weight to the item in every tracked list.
// It stops at the first failing list; increments already applied stay.
func (t *Tracker) Record(ctx context.Context, itemID int64, action Action) error {
	delta := action.Weight()
	if delta == 0 {
		return &content.ValidationError{Err: fmt.Errorf("unknown engagement action"), Detail: string(action)}
	}
	for _, list := range t.lists {
		if _, err := t.store.Increment(ctx, list, itemID, delta); err != nil {
			return err
		}
	}
	t.logger.Debug("Engagement recorded",
		zap.Int64("item_id", itemID),
		zap.String("action", string(action)),
		zap.Float64("delta", delta))
	return nil
}

// Forget removes a deleted item from every tracked list.
func (t *Tracker) Forget(ctx context.Context, itemID int64) error {
	for _, list := range t.lists {
		if err := t.store.RemoveMember(ctx, list, itemID); err != nil {
			return err
		}
	}
	t.logger.Info("Item removed from score sets", zap.Int64("item_id", itemID))
	return nil
}
