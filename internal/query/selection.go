package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
)

// Unlimited asks the pager for every available record.
const Unlimited = schema.Unlimited

// Params are caller filter values keyed by parameter name. Zero values mean
// "no constraint".
type Params map[string]interface{}

// Selection describes what to ask the index for.
type Selection struct {
	Entity         string
	OrderBy        string
	OrderDirection string
	Where          map[string]string
	Properties     []string
	Max            int
}

// Build turns caller parameters into a Selection for the entity.
// max == 0 selects the entity default; a negative max is unlimited.
func Build(entity schema.Entity, params Params, max int) (Selection, error) {
	for param := range params {
		if _, ok := entity.Filter(param); !ok {
			return Selection{}, fmt.Errorf("unknown filter %q for %s", param, entity.Key)
		}
	}

	where := make(map[string]string)
	for _, f := range entity.Filters {
		value := params[f.Param]
		if isZero(value) {
			if f.Default == nil {
				continue
			}
			value = f.Default
		}
		lit, err := literal(f.Kind, value)
		if err != nil {
			return Selection{}, fmt.Errorf("filter %s: %w", f.Param, err)
		}
		where[f.Key] = lit
	}

	for _, c := range entity.Constraints {
		if c.UnlessSet != "" && !isZero(params[c.UnlessSet]) {
			continue
		}
		lit, err := constant(c.Value)
		if err != nil {
			return Selection{}, fmt.Errorf("constraint %s: %w", c.Key, err)
		}
		where[c.Key] = lit
	}

	if max == 0 {
		max = entity.DefaultMax
	}
	if max < 0 {
		max = Unlimited
	}

	return Selection{
		Entity:         entity.Name,
		OrderBy:        entity.OrderBy,
		OrderDirection: entity.OrderDirection,
		Where:          where,
		Properties:     entity.Properties(),
		Max:            max,
	}, nil
}

// Unbounded reports whether the selection has no page cap.
func (s Selection) Unbounded() bool {
	return s.Max <= 0
}

// Document renders one page of the selection as a GraphQL query.
func (s Selection) Document(first, skip int) string {
	args := []string{"first: " + strconv.Itoa(first)}
	if skip > 0 {
		args = append(args, "skip: "+strconv.Itoa(skip))
	}
	return "{ " + s.field(args) + " }"
}

// Subscription renders the selection as a GraphQL subscription. The page cap
// becomes "first" when bounded.
func (s Selection) Subscription() string {
	var args []string
	if !s.Unbounded() {
		args = append(args, "first: "+strconv.Itoa(s.Max))
	}
	return "subscription { " + s.field(args) + " }"
}

func (s Selection) field(args []string) string {
	if s.OrderBy != "" {
		args = append(args, "orderBy: "+s.OrderBy)
		if s.OrderDirection != "" {
			args = append(args, "orderDirection: "+s.OrderDirection)
		}
	}
	if where := s.renderWhere(); where != "" {
		args = append(args, "where: "+where)
	}

	var b strings.Builder
	b.WriteString(s.Entity)
	if len(args) > 0 {
		b.WriteString("(")
		b.WriteString(strings.Join(args, ", "))
		b.WriteString(")")
	}
	b.WriteString(" { ")
	b.WriteString(strings.Join(s.Properties, ", "))
	b.WriteString(" }")
	return b.String()
}

func (s Selection) renderWhere() string {
	if len(s.Where) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s.Where))
	for k := range s.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+s.Where[k])
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func literal(kind schema.FilterKind, value interface{}) (string, error) {
	switch kind {
	case schema.FilterString:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", value)
		}
		return quote(s), nil
	case schema.FilterNumber:
		return number(value)
	default:
		return "", fmt.Errorf("unsupported filter kind %d", kind)
	}
}

func constant(value interface{}) (string, error) {
	switch typed := value.(type) {
	case string:
		return quote(typed), nil
	case []string:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, quote(item))
		}
		return "[" + strings.Join(items, ",") + "]", nil
	default:
		return number(value)
	}
}

func number(value interface{}) (string, error) {
	switch typed := value.(type) {
	case int:
		return strconv.Itoa(typed), nil
	case int64:
		return strconv.FormatInt(typed, 10), nil
	case uint64:
		return strconv.FormatUint(typed, 10), nil
	default:
		return "", fmt.Errorf("expected number, got %T", value)
	}
}

// quote writes s as a GraphQL string literal. GraphQL string escapes are a
// superset of the JSON ones.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func isZero(value interface{}) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case int:
		return typed == 0
	case int64:
		return typed == 0
	case uint64:
		return typed == 0
	default:
		return false
	}
}
