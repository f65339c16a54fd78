package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
)

const AccountsCollection = "accounts"

var (
	_ domain.AccountRepository = (*Repository)(nil)
	_ domain.SessionStore      = (*Repository)(nil)
)

type accountDoc struct {
	ID            string            `bson:"_id"`
	Name          string            `bson:"name"`
	Email         string            `bson:"email"`
	PasswordHash  string            `bson:"passwordHash,omitempty"`
	GoogleID      string            `bson:"googleId,omitempty"`
	Role          string            `bson:"role"`
	Active        bool              `bson:"isActive"`
	LastLoginAt   *time.Time        `bson:"lastLoginAt,omitempty"`
	CreatedAt     time.Time         `bson:"createdAt"`
	UpdatedAt     time.Time         `bson:"updatedAt"`
	RefreshTokens []refreshTokenDoc `bson:"refreshTokens"`
}

type refreshTokenDoc struct {
	ID        string    `bson:"id"`
	TokenHash string    `bson:"tokenHash"`
	IPAddress string    `bson:"ipAddress,omitempty"`
	UserAgent string    `bson:"userAgent,omitempty"`
	IssuedAt  time.Time `bson:"issuedAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func (d *accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		GoogleID:     d.GoogleID,
		Role:         domain.Role(d.Role),
		Active:       d.Active,
		LastLoginAt:  d.LastLoginAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d refreshTokenDoc) toDomain(accountID string) domain.RefreshToken {
	return domain.RefreshToken{
		ID:        d.ID,
		AccountID: accountID,
		TokenHash: d.TokenHash,
		IPAddress: d.IPAddress,
		UserAgent: d.UserAgent,
		IssuedAt:  d.IssuedAt,
		ExpiresAt: d.ExpiresAt,
	}
}

// Repository keeps each account's refresh tokens as an embedded array on the
// account document, so every session operation is a single-document update.
type Repository struct {
	accounts *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{accounts: db.Collection(AccountsCollection)}
}

// EnsureIndexes creates the unique lookups the repository relies on.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"googleId": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "refreshTokens.tokenHash", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// duplicateKey maps a unique index violation to its domain error, or returns
// nil. The server names the violated index in the message.
func duplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if strings.Contains(err.Error(), "googleId") {
		return autherror.ErrGoogleIDInUse
	}
	return autherror.ErrEmailAlreadyInUse
}

func (r *Repository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc accountDoc
	opts := options.FindOne().SetProjection(bson.M{"refreshTokens": 0})
	err := r.accounts.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *Repository) GetByGoogleID(ctx context.Context, googleID string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"googleId": googleID})
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"refreshTokens": 0})
	cur, err := r.accounts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	out := make([]domain.Account, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toDomain())
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, a *domain.Account) error {
	doc := accountDoc{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		PasswordHash:  a.PasswordHash,
		GoogleID:      a.GoogleID,
		Role:          a.Role.String(),
		Active:        a.Active,
		LastLoginAt:   a.LastLoginAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		RefreshTokens: []refreshTokenDoc{},
	}
	_, err := r.accounts.InsertOne(ctx, doc)
	if conflict := duplicateKey(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *Repository) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.accounts.UpdateOne(ctx, bson.M{"_id": id}, update)
	if conflict := duplicateKey(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return autherror.ErrAccountNotFound
	}
	return nil
}

func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"isActive": active, "updatedAt": time.Now().UTC()}})
}

func (r *Repository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"role": role.String(), "updatedAt": time.Now().UTC()}})
}

func (r *Repository) LinkGoogleID(ctx context.Context, id, googleID string) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"googleId": googleID, "updatedAt": time.Now().UTC()}})
}

func (r *Repository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"lastLoginAt": at}})
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.accounts.Database().Client().Ping(ctx, nil)
}

// StoreRefreshToken pushes rt and keeps the newest maxActive entries in one
// update. Expired entries are pulled by a preceding update.
func (r *Repository) StoreRefreshToken(ctx context.Context, rt *domain.RefreshToken, maxActive int) error {
	_, err := r.accounts.UpdateOne(ctx,
		bson.M{"_id": rt.AccountID},
		bson.M{"$pull": bson.M{"refreshTokens": bson.M{"expiresAt": bson.M{"$lte": rt.IssuedAt}}}})
	if err != nil {
		return fmt.Errorf("failed to prune expired refresh tokens: %w", err)
	}

	doc := refreshTokenDoc{
		ID:        rt.ID,
		TokenHash: rt.TokenHash,
		IPAddress: rt.IPAddress,
		UserAgent: rt.UserAgent,
		IssuedAt:  rt.IssuedAt,
		ExpiresAt: rt.ExpiresAt,
	}
	res, err := r.accounts.UpdateOne(ctx,
		bson.M{"_id": rt.AccountID},
		bson.M{"$push": bson.M{"refreshTokens": bson.M{
			"$each":  []refreshTokenDoc{doc},
			"$sort":  bson.M{"issuedAt": 1},
			"$slice": -maxActive,
		}}})
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return autherror.ErrAccountNotFound
	}
	return nil
}

func (r *Repository) HasRefreshToken(ctx context.Context, accountID, tokenHash string, now time.Time) (bool, error) {
	n, err := r.accounts.CountDocuments(ctx, bson.M{
		"_id": accountID,
		"refreshTokens": bson.M{"$elemMatch": bson.M{
			"tokenHash": tokenHash,
			"expiresAt": bson.M{"$gt": now},
		}},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check refresh token: %w", err)
	}
	return n > 0, nil
}

// ConsumeRefreshToken filters on the token being present, so of two
// concurrent callers only one modifies the document.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, accountID, tokenHash string) (bool, error) {
	res, err := r.accounts.UpdateOne(ctx,
		bson.M{"_id": accountID, "refreshTokens.tokenHash": tokenHash},
		bson.M{"$pull": bson.M{"refreshTokens": bson.M{"tokenHash": tokenHash}}})
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *Repository) RevokeAllRefreshTokens(ctx context.Context, accountID string) error {
	_, err := r.accounts.UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{"$set": bson.M{"refreshTokens": []refreshTokenDoc{}}})
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

func (r *Repository) ListRefreshTokens(ctx context.Context, accountID string, now time.Time) ([]domain.RefreshToken, error) {
	var doc accountDoc
	opts := options.FindOne().SetProjection(bson.M{"refreshTokens": 1})
	err := r.accounts.FindOne(ctx, bson.M{"_id": accountID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh tokens: %w", err)
	}

	var out []domain.RefreshToken
	for i := len(doc.RefreshTokens) - 1; i >= 0; i-- {
		rt := doc.RefreshTokens[i]
		if rt.ExpiresAt.After(now) {
			out = append(out, rt.toDomain(accountID))
		}
	}
	return out, nil
}
