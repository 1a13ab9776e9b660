package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/brandworks/portfolio-engine/pkg/assets"
	"github.com/brandworks/portfolio-engine/pkg/audit"
	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/cache"
	"github.com/brandworks/portfolio-engine/pkg/cleanup"
	"github.com/brandworks/portfolio-engine/pkg/streams"
)

// MaxCommentLength is the longest accepted review comment, in characters.
const MaxCommentLength = 4000

// CleanupQueue records asset deletions that failed so they can be retried
// out of band. *cleanup.JobStore implements it.
type CleanupQueue interface {
	EnqueueDelete(ctx context.Context, assetRef, itemID, reason, requestedBy string) (*cleanup.AssetCleanupJob, error)
}

// CleanupResult describes the asset deletion that follows a catalog
// mutation. The catalog mutation has already succeeded when a result is
// returned; a failed deletion only leaks the asset.
type CleanupResult struct {
	AssetRef    string `json:"assetRef,omitempty"`
	Attempted   bool   `json:"attempted"`
	Failed      bool   `json:"failed"`
	Error       string `json:"error,omitempty"`
	RetryQueued bool   `json:"retryQueued"`
	RetryJobID  string `json:"retryJobId,omitempty"`
}

// ImageResult is returned by ReplaceImage.
type ImageResult struct {
	Image   string        `json:"image"`
	State   State         `json:"state"`
	Cleanup CleanupResult `json:"cleanup"`
}

// NewAsset is the image handed to ReplaceImage: either raw bytes to upload,
// or the URL of an object the caller already stored in the asset store.
type NewAsset struct {
	Data        []byte
	ContentType string
	FileName    string
	URL         string
}

// Dependencies are the collaborators of a Service. Nil fields get defaults:
// the stock gate and stream registry, an in-memory asset store, no-op
// audit and invalidation, and no retry queue.
type Dependencies struct {
	Gate          *authz.Gate
	Assets        assets.Store
	Cleanup       CleanupQueue
	Audit         audit.Recorder
	Invalidator   cache.Invalidator
	Streams       *streams.Registry
	MaxImageBytes int64
}

// Service implements the portfolio operations. Every operation takes the
// caller explicitly and re-reads the state it authorizes against.
type Service struct {
	stores        *Stores
	gate          *authz.Gate
	assets        assets.Store
	cleanup       CleanupQueue
	audit         audit.Recorder
	invalidator   cache.Invalidator
	streams       *streams.Registry
	maxImageBytes int64
	logger        *slog.Logger
}

// NewService creates a Service.
func NewService(stores *Stores, deps Dependencies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		stores:        stores,
		gate:          deps.Gate,
		assets:        deps.Assets,
		cleanup:       deps.Cleanup,
		audit:         deps.Audit,
		invalidator:   deps.Invalidator,
		streams:       deps.Streams,
		maxImageBytes: deps.MaxImageBytes,
		logger:        logger,
	}
	if s.gate == nil {
		s.gate = authz.NewGate()
	}
	if s.assets == nil {
		s.assets = assets.NewMemoryStore(assets.DefaultMemoryBaseURL)
	}
	if s.audit == nil {
		s.audit = audit.NopRecorder{}
	}
	if s.invalidator == nil {
		s.invalidator = cache.NoopInvalidator{}
	}
	if s.streams == nil {
		s.streams = streams.DefaultRegistry()
	}
	if s.maxImageBytes <= 0 {
		s.maxImageBytes = assets.DefaultMaxBytes
	}
	return s
}

// Streams returns the stream registry the service validates against.
func (s *Service) Streams() *streams.Registry {
	return s.streams
}

// CreateItem inserts a draft item and returns its id. The image is attached
// afterwards with ReplaceImage, which namespaces the object by this id.
func (s *Service) CreateItem(ctx context.Context, caller authz.CallerContext, fields ItemFields) (id string, err error) {
	ev := s.begin(caller, "create-item", "items")
	defer func() { s.finish(ctx, ev, err) }()

	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return "", err
	}

	fields, err = s.validateFields(fields)
	if err != nil {
		return "", err
	}
	ev.Stream = fields.Stream

	id, err = s.stores.Catalog.Insert(ctx, fields)
	if err != nil {
		return "", err
	}
	ev.ResourceIDs = []string{id}
	ev.Metadata = map[string]any{"title": fields.Title}

	s.invalidate(ctx, fields.Stream, id, "create-item")
	return id, nil
}

// UpdateItem applies a partial update. Setting Image only swaps the
// reference; releasing the previous asset is the caller's job (see
// ReplaceImage).
func (s *Service) UpdateItem(ctx context.Context, caller authz.CallerContext, id string, patch ItemPatch) (err error) {
	ev := s.begin(caller, "update-item", "items", id)
	defer func() { s.finish(ctx, ev, err) }()

	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return invalidArgument("no fields to update")
	}
	patch, err = s.validatePatch(ctx, id, patch)
	if err != nil {
		return err
	}

	current, err := s.stores.Catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	ev.Stream = current.Stream

	if err := s.stores.Catalog.Update(ctx, id, patch); err != nil {
		return err
	}

	s.invalidate(ctx, current.Stream, id, "update-item")
	if patch.Stream != nil && *patch.Stream != current.Stream {
		ev.Metadata = map[string]any{"fromStream": current.Stream, "toStream": *patch.Stream}
		s.invalidate(ctx, *patch.Stream, id, "update-item")
	}
	return nil
}

// ReplaceImage swaps the item's image. The old asset is deleted first,
// unless another item still shows it; a failed deletion is logged, queued
// for retry once the item no longer references it, and does not block the
// new upload. A URL must name an asset under the item's own namespace. If
// storing the new asset fails the item row is left as it was, except that an
// image whose asset was already deleted is cleared.
func (s *Service) ReplaceImage(ctx context.Context, caller authz.CallerContext, id string, asset NewAsset) (result *ImageResult, err error) {
	ev := s.begin(caller, "replace-image", "items", id)
	defer func() { s.finish(ctx, ev, err) }()

	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return nil, err
	}

	var (
		provided    assets.Ref
		contentType string
	)
	if asset.URL != "" {
		provided, err = s.attachableRef(ctx, id, asset.URL)
		if err != nil {
			return nil, err
		}
	} else {
		contentType, err = assets.ValidateImage(asset.Data, asset.ContentType, s.maxImageBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	item, err := s.stores.Catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ev.Stream = item.Stream
	if _, err := NextState(StateOf(item), TransitionReplaceImage); err != nil {
		return nil, err
	}

	oldImage := item.Image
	if provided != "" && s.assets.URL(provided) == oldImage {
		return &ImageResult{Image: oldImage, State: StatePublished}, nil
	}

	// Old asset first. Its failure is recorded but never aborts the swap.
	var (
		oldRef     assets.Ref
		oldOwned   bool
		oldDeleted bool
		deleteErr  error
	)
	if oldImage != "" {
		oldRef, oldOwned = s.assets.RefFromURL(oldImage)
		if oldOwned && s.assetInUse(ctx, oldRef, id) {
			oldOwned = false
		} else if oldOwned {
			if deleteErr = s.assets.Delete(ctx, oldRef); deleteErr != nil {
				s.logger.Warn("failed to delete previous image asset",
					"itemID", id, "assetRef", oldRef, "error", deleteErr)
			} else {
				oldDeleted = true
			}
		} else {
			s.logger.Info("previous image is not managed by the asset store, leaving it", "itemID", id, "image", oldImage)
		}
	}

	newRef := provided
	if newRef == "" {
		newRef, err = s.assets.Put(ctx, assetNamespace(id), asset.Data, contentType)
		if err != nil {
			if oldDeleted {
				s.clearDeletedImage(ctx, id, oldImage, oldRef)
			}
			return nil, storageFailure("store image asset", err)
		}
	}
	newURL := s.assets.URL(newRef)

	swapped, err := s.stores.Catalog.SetImage(ctx, id, oldImage, newURL)
	if err == nil && !swapped {
		if _, getErr := s.stores.Catalog.Get(ctx, id); getErr != nil {
			err = getErr
		} else {
			err = storageFailure("set item image", errors.New("image changed concurrently"))
		}
	}
	if err != nil {
		if oldDeleted {
			s.clearDeletedImage(ctx, id, oldImage, oldRef)
		}
		// The row does not reference the new asset; release it.
		s.releaseAsset(ctx, caller, id, newRef, "replace-image-rollback")
		return nil, err
	}

	result = &ImageResult{
		Image:   newURL,
		State:   StatePublished,
		Cleanup: CleanupResult{AssetRef: string(oldRef), Attempted: oldOwned},
	}
	if deleteErr != nil {
		result.Cleanup.Failed = true
		result.Cleanup.Error = deleteErr.Error()
		s.enqueueRetry(ctx, caller, &result.Cleanup, id, "replace-image")
	}
	ev.Metadata = map[string]any{"image": newURL, "cleanupFailed": result.Cleanup.Failed}

	s.invalidate(ctx, item.Stream, id, "replace-image")
	return result, nil
}

// RemoveImage clears the item's image and then deletes the asset. A failed
// deletion is reported in the result and queued for retry.
func (s *Service) RemoveImage(ctx context.Context, caller authz.CallerContext, id string) (result CleanupResult, err error) {
	ev := s.begin(caller, "remove-image", "items", id)
	defer func() { s.finish(ctx, ev, err) }()

	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return CleanupResult{}, err
	}

	item, err := s.stores.Catalog.Get(ctx, id)
	if err != nil {
		return CleanupResult{}, err
	}
	ev.Stream = item.Stream
	if _, err := NextState(StateOf(item), TransitionRemoveImage); err != nil {
		return CleanupResult{}, err
	}
	if item.Image == "" {
		return CleanupResult{}, nil
	}

	cleared, err := s.stores.Catalog.SetImage(ctx, id, item.Image, "")
	if err != nil {
		return CleanupResult{}, err
	}
	if !cleared {
		if _, err := s.stores.Catalog.Get(ctx, id); err != nil {
			return CleanupResult{}, err
		}
		return CleanupResult{}, storageFailure("clear item image", errors.New("image changed concurrently"))
	}

	if ref, ok := s.assets.RefFromURL(item.Image); ok {
		result = s.releaseAsset(ctx, caller, id, ref, "remove-image")
	}
	ev.Metadata = map[string]any{"cleanupFailed": result.Failed}

	s.invalidate(ctx, item.Stream, id, "remove-image")
	return result, nil
}

// DeleteItem deletes the item's asset, then the item and its reviews. A
// failed asset deletion does not block the delete; it is queued for retry
// once the row is gone.
func (s *Service) DeleteItem(ctx context.Context, caller authz.CallerContext, id string) (result CleanupResult, err error) {
	ev := s.begin(caller, "delete-item", "items", id)
	defer func() { s.finish(ctx, ev, err) }()

	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return CleanupResult{}, err
	}

	item, err := s.stores.Catalog.Get(ctx, id)
	if err != nil {
		return CleanupResult{}, err
	}
	ev.Stream = item.Stream
	if _, err := NextState(StateOf(item), TransitionDelete); err != nil {
		return CleanupResult{}, err
	}

	var deleteErr error
	if item.Image != "" {
		if ref, ok := s.assets.RefFromURL(item.Image); ok && !s.assetInUse(ctx, ref, id) {
			result = CleanupResult{AssetRef: string(ref), Attempted: true}
			if deleteErr = s.assets.Delete(ctx, ref); deleteErr != nil {
				s.logger.Warn("failed to delete image asset of deleted item",
					"itemID", id, "assetRef", ref, "error", deleteErr)
				result.Failed = true
				result.Error = deleteErr.Error()
			}
		}
	}

	if err := s.stores.Catalog.Delete(ctx, id); err != nil {
		return CleanupResult{}, err
	}
	if deleteErr != nil {
		s.enqueueRetry(ctx, caller, &result, id, "delete-item")
	}
	ev.Metadata = map[string]any{"title": item.Title, "cleanupFailed": result.Failed}

	s.invalidate(ctx, item.Stream, id, "delete-item")
	return result, nil
}

// GetItem returns an item with its reviews, oldest first, and its rating.
// Private fields are included for administrators only.
func (s *Service) GetItem(ctx context.Context, caller authz.CallerContext, id string) (*ItemDetail, error) {
	if err := s.authorize(caller, authz.OpPublicRead); err != nil {
		return nil, err
	}

	item, err := s.stores.Catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.stores.Reviews.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}

	private := caller.IsAdmin()
	detail := &ItemDetail{
		ItemView: newItemView(item, RatingOf(reviews), private),
		Reviews:  make([]ReviewView, len(reviews)),
	}
	for i := range reviews {
		detail.Reviews[i] = newReviewView(&reviews[i], private)
	}
	return detail, nil
}

// ListItemsByStream returns a stream's items, newest first, with ratings.
func (s *Service) ListItemsByStream(ctx context.Context, caller authz.CallerContext, stream string) ([]ItemView, error) {
	if err := s.authorize(caller, authz.OpPublicRead); err != nil {
		return nil, err
	}
	name, err := s.streams.Parse(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	items, err := s.stores.Catalog.ListByStream(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.withRatings(ctx, items, caller.IsAdmin())
}

// ListAllAdminItems returns every item across streams, newest first.
func (s *Service) ListAllAdminItems(ctx context.Context, caller authz.CallerContext) ([]ItemView, error) {
	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return nil, err
	}
	items, err := s.stores.Catalog.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.withRatings(ctx, items, true)
}

func (s *Service) withRatings(ctx context.Context, items []ItemRecord, private bool) ([]ItemView, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	ratings, err := s.stores.Reviews.Ratings(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]ItemView, len(items))
	for i := range items {
		views[i] = newItemView(&items[i], ratings[items[i].ID], private)
	}
	return views, nil
}

// AddReview records the caller's review of an item. Eligibility and the
// already-reviewed check are read inside the insert transaction; the unique
// index on (item, reviewer) settles concurrent submissions.
func (s *Service) AddReview(ctx context.Context, caller authz.CallerContext, itemID string, rating int, comment string) (view *ReviewView, err error) {
	ev := s.begin(caller, "add-review", "reviews", itemID)
	defer func() { s.finish(ctx, ev, err) }()

	if d := s.gate.EdgeCheck(caller, authz.OpReviewWrite); !d.Allowed() {
		return nil, unauthorized(authz.OpReviewWrite, d)
	}

	comment = strings.TrimSpace(comment)
	var rec *ReviewRecord
	err = s.stores.InTx(ctx, func(tx *Stores) error {
		item, err := tx.Catalog.Get(ctx, itemID)
		if err != nil {
			return err
		}
		ev.Stream = item.Stream

		reviewed, err := tx.Reviews.ExistsForReviewer(ctx, itemID, caller.Principal.ID)
		if err != nil {
			return err
		}
		d := s.gate.Authorize(caller, authz.OpReviewWrite, &authz.ReviewTarget{
			EligibleEmails:  item.EligibleEmails,
			AlreadyReviewed: reviewed,
		})
		if !d.Allowed() {
			if d.Reason == authz.ReasonAlreadyReviewed {
				return fmt.Errorf("item %s: %w", itemID, ErrAlreadyReviewed)
			}
			return unauthorized(authz.OpReviewWrite, d)
		}

		if !ValidRating(rating) {
			return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
		}
		if utf8.RuneCountInString(comment) > MaxCommentLength {
			return invalidArgument("comment exceeds %d characters", MaxCommentLength)
		}

		rec = &ReviewRecord{
			ItemID:        itemID,
			ReviewerID:    caller.Principal.ID,
			ReviewerName:  caller.Principal.DisplayName,
			ReviewerEmail: authz.NormalizeEmail(caller.Principal.Email),
			Rating:        rating,
			Comment:       comment,
		}
		return tx.Reviews.Insert(ctx, rec)
	})
	if errors.Is(err, ErrDuplicateReview) {
		err = fmt.Errorf("%w: %w", ErrAlreadyReviewed, err)
	}
	if err != nil {
		return nil, err
	}

	ev.ResourceIDs = []string{itemID, rec.ID}
	ev.Metadata = map[string]any{"rating": rating}

	s.invalidate(ctx, ev.Stream, itemID, "add-review")
	v := newReviewView(rec, false)
	return &v, nil
}

// DeleteReview removes a review.
func (s *Service) DeleteReview(ctx context.Context, caller authz.CallerContext, reviewID string) (err error) {
	ev := s.begin(caller, "delete-review", "reviews", reviewID)
	defer func() { s.finish(ctx, ev, err) }()

	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return err
	}

	review, err := s.stores.Reviews.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	if err := s.stores.Reviews.Delete(ctx, reviewID); err != nil {
		return err
	}
	ev.Metadata = map[string]any{"itemID": review.ItemID, "reviewerID": review.ReviewerID}

	if item, err := s.stores.Catalog.Get(ctx, review.ItemID); err == nil {
		ev.Stream = item.Stream
		s.invalidate(ctx, item.Stream, item.ID, "delete-review")
	}
	return nil
}

// ListAllReviewsForAudit returns every review with reviewer and item
// context, newest first.
func (s *Service) ListAllReviewsForAudit(ctx context.Context, caller authz.CallerContext) ([]AuditReview, error) {
	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return nil, err
	}
	rows, err := s.stores.Reviews.ListAllWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AuditReview, len(rows))
	for i := range rows {
		out[i] = AuditReview{
			ReviewView: newReviewView(&rows[i].ReviewRecord, true),
			ItemTitle:  rows[i].ItemTitle,
			ItemStream: rows[i].ItemStream,
		}
	}
	return out, nil
}

// ReviewEligibility reports, for administrators, whether email is on the
// item's list and whether a review under that email already exists.
func (s *Service) ReviewEligibility(ctx context.Context, caller authz.CallerContext, itemID, email string) (*Eligibility, error) {
	if err := s.authorize(caller, authz.OpAdministrative); err != nil {
		return nil, err
	}
	email = authz.NormalizeEmail(email)
	if email == "" {
		return nil, invalidArgument("email is required")
	}

	item, err := s.stores.Catalog.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	reviewed, err := s.stores.Reviews.ExistsForEmail(ctx, itemID, email)
	if err != nil {
		return nil, err
	}
	listed := authz.EmailListed(item.EligibleEmails, email)
	return &Eligibility{
		ItemID:          itemID,
		Email:           email,
		Listed:          listed,
		AlreadyReviewed: reviewed,
		CanReview:       listed && !reviewed,
	}, nil
}

func (s *Service) authorize(caller authz.CallerContext, op authz.Operation) error {
	if d := s.gate.Authorize(caller, op, nil); !d.Allowed() {
		return unauthorized(op, d)
	}
	return nil
}

func (s *Service) validateFields(f ItemFields) (ItemFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		return f, invalidArgument("title is required")
	}
	stream, err := s.streams.Parse(f.Stream)
	if err != nil {
		return f, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	f.Stream = stream
	emails, err := cleanEmails(f.EligibleEmails)
	if err != nil {
		return f, err
	}
	f.EligibleEmails = emails
	return f, nil
}

func (s *Service) validatePatch(ctx context.Context, id string, p ItemPatch) (ItemPatch, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return p, invalidArgument("title must not be empty")
		}
		p.Title = &title
	}
	if p.Stream != nil {
		stream, err := s.streams.Parse(*p.Stream)
		if err != nil {
			return p, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		p.Stream = &stream
	}
	if p.EligibleEmails != nil {
		emails, err := cleanEmails(*p.EligibleEmails)
		if err != nil {
			return p, err
		}
		p.EligibleEmails = &emails
	}
	if p.Image != nil && *p.Image != "" {
		if _, err := s.attachableRef(ctx, id, *p.Image); err != nil {
			return p, err
		}
	}
	return p, nil
}

// attachableRef resolves an image URL an administrator attaches to itemID.
// Only existing objects under the item's own namespace qualify, so two
// items never share an asset.
func (s *Service) attachableRef(ctx context.Context, itemID, url string) (assets.Ref, error) {
	ref, ok := s.assets.RefFromURL(url)
	if !ok {
		return "", invalidArgument("image URL %q is not managed by the asset store", url)
	}
	if !strings.HasPrefix(string(ref), assetNamespace(itemID)+"/") {
		return "", invalidArgument("image asset %q does not belong to item %s", ref, itemID)
	}
	exists, err := s.assets.Exists(ctx, ref)
	if err != nil {
		return "", storageFailure("check image asset", err)
	}
	if !exists {
		return "", invalidArgument("image asset %q does not exist", ref)
	}
	return ref, nil
}

// assetInUse reports whether an item other than exceptID still shows ref.
// A failed lookup counts as in use: leaking the object is the accepted
// failure, an item pointing at a deleted one is not.
func (s *Service) assetInUse(ctx context.Context, ref assets.Ref, exceptID string) bool {
	used, err := s.stores.Catalog.ImageReferenced(ctx, s.assets.URL(ref), exceptID)
	if err != nil {
		s.logger.Warn("failed to check image references, keeping asset", "assetRef", ref, "error", err)
		return true
	}
	if used {
		s.logger.Info("image asset is shown by another item, keeping it", "itemID", exceptID, "assetRef", ref)
	}
	return used
}

// AssetReferenced reports whether any item shows ref. The cleanup worker
// checks it before retrying a deletion.
func (s *Service) AssetReferenced(ctx context.Context, ref assets.Ref) (bool, error) {
	return s.stores.Catalog.ImageReferenced(ctx, s.assets.URL(ref), "")
}

// clearDeletedImage empties the image column if it still holds image,
// whose asset is already gone.
func (s *Service) clearDeletedImage(ctx context.Context, id, image string, ref assets.Ref) {
	if _, err := s.stores.Catalog.SetImage(ctx, id, image, ""); err != nil {
		s.logger.Error("failed to clear image after its asset was deleted",
			"itemID", id, "assetRef", ref, "error", err)
	}
}

// cleanEmails trims entries and drops blanks. Order and duplicates are kept.
func cleanEmails(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "@") || strings.ContainsAny(e, " \t\r\n,;") {
			return nil, invalidArgument("invalid eligible email %q", e)
		}
		out = append(out, e)
	}
	return out, nil
}

func assetNamespace(itemID string) string {
	return "portfolio/" + itemID
}

// releaseAsset deletes an asset the catalog no longer references. Failures
// are logged and queued for retry.
func (s *Service) releaseAsset(ctx context.Context, caller authz.CallerContext, itemID string, ref assets.Ref, reason string) CleanupResult {
	if s.assetInUse(ctx, ref, itemID) {
		return CleanupResult{AssetRef: string(ref)}
	}
	result := CleanupResult{AssetRef: string(ref), Attempted: true}
	if err := s.assets.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete image asset", "itemID", itemID, "assetRef", ref, "reason", reason, "error", err)
		result.Failed = true
		result.Error = err.Error()
		s.enqueueRetry(ctx, caller, &result, itemID, reason)
	}
	return result
}

func (s *Service) enqueueRetry(ctx context.Context, caller authz.CallerContext, result *CleanupResult, itemID, reason string) {
	if s.cleanup == nil || result.AssetRef == "" {
		return
	}
	job, err := s.cleanup.EnqueueDelete(context.WithoutCancel(ctx), result.AssetRef, itemID, reason, caller.Actor())
	if err != nil {
		s.logger.Error("failed to queue asset cleanup", "itemID", itemID, "assetRef", result.AssetRef, "error", err)
		return
	}
	result.RetryQueued = true
	result.RetryJobID = job.ID
}

func (s *Service) invalidate(ctx context.Context, stream, itemID, reason string) {
	if stream == "" {
		return
	}
	intent := cache.Intent{
		Stream: stream,
		Paths:  s.streams.Paths(stream),
		Reason: reason,
		ItemID: itemID,
	}
	if err := s.invalidator.Invalidate(context.WithoutCancel(ctx), intent); err != nil {
		s.logger.Warn("cache invalidation failed", "stream", stream, "itemID", itemID, "error", err)
	}
}

func (s *Service) begin(caller authz.CallerContext, action, resourceType string, ids ...string) *audit.Event {
	return &audit.Event{
		Caller:       caller,
		Action:       action,
		ResourceType: resourceType,
		ResourceIDs:  ids,
	}
}

func (s *Service) finish(ctx context.Context, ev *audit.Event, err error) {
	switch {
	case err == nil:
		ev.Outcome = audit.OutcomeSuccess
	case errors.Is(err, ErrUnauthorized):
		ev.Outcome = audit.OutcomeDenied
		ev.Reason = denyReason(err)
	default:
		ev.Outcome = audit.OutcomeFailure
		ev.Reason = Code(err)
	}
	s.audit.Record(ctx, *ev)
}
