package store

import (
	"context"
	stderrors "errors"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gorm is the durable backend. Radius queries pull candidates and filter in
// process with Haversine, no spatial index is assumed.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(models.AllModels()...); err != nil {
		return errors.Infrastructure(err, "auto migrate")
	}
	return nil
}

func (g *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return errors.Infrastructure(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Infrastructure(err, "ping database")
	}
	return nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps gorm errors onto the store's error kinds.
func translate(err error, kind, id, op string) error {
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return notFound(kind, id)
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Conflict("%s %s already exists", kind, id)
	default:
		return errors.Infrastructure(err, "%s %s", op, kind)
	}
}

func (g *Gorm) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err, "user", id, "get")
	}
	return &u, nil
}

func (g *Gorm) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := g.db.WithContext(ctx).Where("phone = ?", phone).First(&u).Error; err != nil {
		return nil, translate(err, "user with phone", phone, "get")
	}
	return &u, nil
}

func (g *Gorm) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	c := *u
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := g.db.WithContext(ctx).Create(&c).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("phone %s already registered", c.Phone)
		}
		return nil, translate(err, "user", c.ID, "create")
	}
	return &c, nil
}

// UpdateUser re-reads the row afterwards because mysql reports zero affected
// rows when the values did not change.
func (g *Gorm) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if cols := patch.Columns(); len(cols) > 0 {
		var values models.User
		patch.Apply(&values)
		err := g.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Select(cols).Updates(&values).Error
		if err != nil {
			return nil, translate(err, "user", id, "update")
		}
	}
	return g.GetUser(ctx, id)
}

func (g *Gorm) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := g.db.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, errors.Infrastructure(err, "list users")
	}
	return users, nil
}

func (g *Gorm) ListUsersInRadius(ctx context.Context, center geo.Coordinate, radiusKm float64) ([]*models.User, error) {
	if radiusKm <= 0 {
		return nil, nil
	}
	var candidates []*models.User
	err := g.db.WithContext(ctx).
		Where("is_online = ? AND available = ?", true, true).
		Find(&candidates).Error
	if err != nil {
		return nil, errors.Infrastructure(err, "list users in radius")
	}
	var out []*models.User
	for _, u := range candidates {
		if u.Reachable() && inRadius(center, u.Location.Coordinate(), radiusKm) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (g *Gorm) GetEvent(ctx context.Context, id string) (*models.SosEvent, error) {
	return g.getEvent(g.db.WithContext(ctx), id)
}

func (g *Gorm) getEvent(db *gorm.DB, id string) (*models.SosEvent, error) {
	var e models.SosEvent
	if err := db.Where("id = ?", id).First(&e).Error; err != nil {
		return nil, translate(err, "event", id, "get")
	}
	return &e, nil
}

func (g *Gorm) CreateEvent(ctx context.Context, e *models.SosEvent) (*models.SosEvent, error) {
	c := *e
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := g.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, translate(err, "event", c.ID, "create")
	}
	return &c, nil
}

func (g *Gorm) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.SosEvent, error) {
	var out *models.SosEvent
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := g.getEvent(tx, id)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() && (patch.Status != nil || patch.TouchesImmutable()) {
			return errors.Conflict("event %s is %s", id, cur.Status)
		}
		if cols := patch.Columns(); len(cols) > 0 {
			var values models.SosEvent
			patch.Apply(&values)
			if err := tx.Model(&models.SosEvent{}).Where("id = ?", id).Select(cols).Updates(&values).Error; err != nil {
				return translate(err, "event", id, "update")
			}
		}
		out, err = g.getEvent(tx, id)
		return err
	})
	if err != nil {
		if errors.GetCode(err) == 0 {
			return nil, errors.Infrastructure(err, "update event")
		}
		return nil, err
	}
	return out, nil
}

// TransitionEvent is a single conditional UPDATE, the cross-process
// linearization point for event status.
func (g *Gorm) TransitionEvent(ctx context.Context, id string, from models.EventStatus, patch models.EventPatch) (*models.SosEvent, error) {
	db := g.db.WithContext(ctx)
	var values models.SosEvent
	patch.Apply(&values)
	res := db.Model(&models.SosEvent{}).
		Where("id = ? AND status = ?", id, from).
		Select(patch.Columns()).
		Updates(&values)
	if res.Error != nil {
		return nil, translate(res.Error, "event", id, "transition")
	}
	cur, err := g.getEvent(db, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && cur.Status != from {
		return nil, errors.Wrapf(ErrStatusMismatch, "event %s is %s", id, cur.Status)
	}
	return cur, nil
}

func (g *Gorm) listEvents(ctx context.Context, op string, query func(*gorm.DB) *gorm.DB) ([]*models.SosEvent, error) {
	var events []*models.SosEvent
	if err := query(g.db.WithContext(ctx)).Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, errors.Infrastructure(err, op)
	}
	return events, nil
}

func (g *Gorm) ListEvents(ctx context.Context) ([]*models.SosEvent, error) {
	return g.listEvents(ctx, "list events", func(db *gorm.DB) *gorm.DB { return db })
}

func (g *Gorm) ListActiveEvents(ctx context.Context) ([]*models.SosEvent, error) {
	return g.listEvents(ctx, "list active events", func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", models.EventActive)
	})
}

func (g *Gorm) ListActiveEventsInRadius(ctx context.Context, center geo.Coordinate, radiusKm float64) ([]*models.SosEvent, error) {
	if radiusKm <= 0 {
		return nil, nil
	}
	active, err := g.ListActiveEvents(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.SosEvent
	for _, e := range active {
		if inRadius(center, e.Location, radiusKm) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *Gorm) ListEventsByUser(ctx context.Context, userID string) ([]*models.SosEvent, error) {
	return g.listEvents(ctx, "list events by user", func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	})
}

func (g *Gorm) GetResponse(ctx context.Context, id string) (*models.SosResponse, error) {
	var r models.SosResponse
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, translate(err, "response", id, "get")
	}
	return &r, nil
}

func (g *Gorm) CreateResponse(ctx context.Context, r *models.SosResponse) (*models.SosResponse, error) {
	db := g.db.WithContext(ctx)
	if _, err := g.getEvent(db, r.EventID); err != nil {
		return nil, err
	}
	c := *r
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := db.Create(&c).Error; err != nil {
		return nil, translate(err, "response", c.ID, "create")
	}
	return &c, nil
}

func (g *Gorm) UpdateResponse(ctx context.Context, id string, patch models.ResponsePatch) (*models.SosResponse, error) {
	if cols := patch.Columns(); len(cols) > 0 {
		var values models.SosResponse
		patch.Apply(&values)
		err := g.db.WithContext(ctx).Model(&models.SosResponse{}).Where("id = ?", id).Select(cols).Updates(&values).Error
		if err != nil {
			return nil, translate(err, "response", id, "update")
		}
	}
	return g.GetResponse(ctx, id)
}

func (g *Gorm) listResponses(ctx context.Context, column, value string) ([]*models.SosResponse, error) {
	var out []*models.SosResponse
	err := g.db.WithContext(ctx).Where(column+" = ?", value).Order("created_at").Find(&out).Error
	if err != nil {
		return nil, errors.Infrastructure(err, "list responses by %s", column)
	}
	return out, nil
}

func (g *Gorm) ListResponsesByEvent(ctx context.Context, eventID string) ([]*models.SosResponse, error) {
	return g.listResponses(ctx, "event_id", eventID)
}

func (g *Gorm) ListResponsesByResponder(ctx context.Context, userID string) ([]*models.SosResponse, error) {
	return g.listResponses(ctx, "responder_id", userID)
}

var _ Store = (*Gorm)(nil)
