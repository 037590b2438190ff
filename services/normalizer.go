package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"catawiki-scraper/models"
	"catawiki-scraper/utils"
)

// MalformedRecordError reports a raw lot that cannot be normalized. The
// pipeline skips such lots.
type MalformedRecordError struct {
	ID     string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("malformed lot %s: %s: %s", e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed lot: %s: %s", e.Field, e.Reason)
}

// Normalizer maps raw marketplace lots onto NormalizedListing.
type Normalizer struct {
	logger    *utils.Logger
	currency  models.Currency
	validator *validator.Validate
}

// NewNormalizer creates a Normalizer that reads bids in the preferred
// currency when the lot quotes it. Unsupported codes fall back to EUR.
func NewNormalizer(logger *utils.Logger, preferred string) *Normalizer {
	currency, ok := models.ParseCurrency(strings.ToUpper(preferred))
	if !ok {
		currency = models.EUR
	}
	return &Normalizer{
		logger:    logger,
		currency:  currency,
		validator: newListingValidator(),
	}
}

func newListingValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// NormalizeAll normalizes every lot, logging and skipping the malformed ones
// and any repeated ID. Input order is preserved.
func (n *Normalizer) NormalizeAll(raw []models.RawListing) []*models.NormalizedListing {
	seen := utils.NewIDSet()
	result := make([]*models.NormalizedListing, 0, len(raw))

	for _, r := range raw {
		listing, err := n.Normalize(r)
		if err != nil {
			n.logger.Warn("[normalizer] Skipping lot: %v", err)
			continue
		}
		if !seen.Add(listing.ID) {
			n.logger.Warn("[normalizer] Duplicate lot ID %s skipped", listing.ID)
			continue
		}
		result = append(result, listing)
	}

	n.logger.Info("[normalizer] Normalized %d → %d lots (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// Normalize parses one raw lot. It fails with *MalformedRecordError when a
// required field is absent or has the wrong type.
func (n *Normalizer) Normalize(raw models.RawListing) (*models.NormalizedListing, error) {
	id, err := requiredID(raw)
	if err != nil {
		return nil, err
	}
	fail := func(field, format string, args ...any) error {
		return &MalformedRecordError{ID: id, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	title, err := requiredString(raw, "title")
	if err != nil {
		return nil, fail("title", "%v", err)
	}
	subtitle, err := optionalString(raw, "subtitle")
	if err != nil {
		return nil, fail("subtitle", "%v", err)
	}
	url, err := requiredString(raw, "url")
	if err != nil {
		return nil, fail("url", "%v", err)
	}
	thumb, err := optionalString(raw, "thumbImageUrl")
	if err != nil {
		return nil, fail("thumbImageUrl", "%v", err)
	}

	live, err := optionalObject(raw, "live")
	if err != nil {
		return nil, fail("live", "%v", err)
	}
	bid, currency, err := n.currentBid(live)
	if err != nil {
		return nil, fail("live.bid", "%v", err)
	}
	endRaw, ok := live["biddingEndTime"]
	if !ok || endRaw == nil {
		return nil, fail("live.biddingEndTime", "missing")
	}
	endTime, err := asTime(endRaw)
	if err != nil {
		return nil, fail("live.biddingEndTime", "%v", err)
	}

	var start *time.Time
	if v, ok := raw["biddingStartTime"]; ok && v != nil {
		t, err := asTime(v)
		if err != nil {
			return nil, fail("biddingStartTime", "%v", err)
		}
		start = &t
	}

	buyNow := decimal.NullDecimal{}
	buyNowObj, err := optionalObject(raw, "buyNow")
	if err != nil {
		return nil, fail("buyNow", "%v", err)
	}
	if v, ok := buyNowObj["price_eur"]; ok && v != nil {
		d, err := asDecimal(v)
		if err != nil {
			return nil, fail("buyNow.price_eur", "%v", err)
		}
		buyNow = decimal.NewNullDecimal(d)
	}

	listing := &models.NormalizedListing{
		ID:           id,
		Title:        normaliseText(title),
		Subtitle:     normaliseText(subtitle),
		CurrentBid:   bid,
		Currency:     currency,
		BuyNowPrice:  buyNow,
		BiddingStart: start,
		EndTime:      endTime,
		URL:          strings.TrimSpace(url),
		Thumbnail:    strings.TrimSpace(thumb),
	}

	if err := n.validator.Struct(listing); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fail(verrs[0].Field(), "failed %q check", verrs[0].Tag())
		}
		return nil, fail("(record)", "%v", err)
	}

	return listing, nil
}

// currentBid picks the bid in the preferred currency, else the first
// supported currency the lot quotes. A lot without bids starts at zero.
func (n *Normalizer) currentBid(live map[string]any) (decimal.Decimal, models.Currency, error) {
	raw, ok := live["bid"]
	if !ok || raw == nil {
		return decimal.Zero, n.currency, nil
	}
	bids, ok := raw.(map[string]any)
	if !ok {
		return decimal.Zero, "", fmt.Errorf("expected object, got %T", raw)
	}
	if len(bids) == 0 {
		return decimal.Zero, n.currency, nil
	}

	candidates := append([]models.Currency{n.currency}, models.SupportedCurrencies...)
	for _, c := range candidates {
		v, ok := bids[string(c)]
		if !ok || v == nil {
			continue
		}
		d, err := asDecimal(v)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("%s: %w", c, err)
		}
		if d.IsNegative() {
			return decimal.Zero, "", fmt.Errorf("%s: negative bid %s", c, d)
		}
		return d, c, nil
	}
	return decimal.Zero, "", errors.New("no bid in a supported currency")
}

func requiredID(raw models.RawListing) (string, error) {
	v, ok := raw["id"]
	if !ok || v == nil {
		return "", &MalformedRecordError{Field: "id", Reason: "missing"}
	}
	var id string
	switch x := v.(type) {
	case json.Number:
		id = x.String()
	case string:
		id = strings.TrimSpace(x)
	case float64:
		id = decimal.NewFromFloat(x).String()
	default:
		return "", &MalformedRecordError{Field: "id", Reason: fmt.Sprintf("unexpected type %T", v)}
	}
	if id == "" {
		return "", &MalformedRecordError{Field: "id", Reason: "empty"}
	}
	return id, nil
}

func requiredString(raw models.RawListing, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", errors.New("missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	if strings.TrimSpace(s) == "" {
		return "", errors.New("empty")
	}
	return s, nil
}

func optionalString(raw models.RawListing, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func optionalObject(raw map[string]any, key string) (map[string]any, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return obj, nil
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	default:
		return decimal.Zero, fmt.Errorf("expected number, got %T", v)
	}
}

// asTime accepts epoch milliseconds or an RFC 3339 string.
func asTime(v any) (time.Time, error) {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	d, err := asDecimal(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected epoch milliseconds or RFC 3339 time: %w", err)
	}
	if !d.IsInteger() || d.IsNegative() {
		return time.Time{}, fmt.Errorf("invalid epoch milliseconds %s", d)
	}
	return time.UnixMilli(d.IntPart()).UTC(), nil
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
