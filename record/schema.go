// Package record defines the field schemas for each record kind and the
// normalization of raw tool arguments into canonical values.
package record

import (
	"fmt"

	"github.com/BaSui01/intake/types"
)

// SentinelNone 是表示"刻意为空"的哨兵字符串，大小写不敏感匹配。
const SentinelNone = "none"

// Origin tag constants per record family.
const (
	ShopName     = "Brew Haven Coffee Shop"
	PlatformName = "VitaTrack Wellness"
)

// Schema is the ordered list of field specs a record kind must satisfy
// before persistence, plus the kind's storage and origin metadata.
type Schema struct {
	Kind types.RecordKind
	// Prefix is the filename prefix (order, meal, goal, metric).
	Prefix string
	// Dir is the storage directory name under the data root.
	Dir string
	// OriginKey/OriginValue form the static origin tag written into every
	// persisted document of this kind.
	OriginKey   string
	OriginValue string

	fields []types.FieldSpec
}

// Fields returns the field specs in declaration order.
func (s *Schema) Fields() []types.FieldSpec {
	out := make([]types.FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the spec for the given argument name.
func (s *Schema) Field(name string) (types.FieldSpec, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return types.FieldSpec{}, false
}

// IdentifierKey returns the JSON key of the field that names the
// persisted file (the human identifier).
func (s *Schema) IdentifierKey() string {
	for _, f := range s.fields {
		if f.Identifier {
			return f.JSONKey
		}
	}
	return ""
}

// 每个 RecordKind 的字段表。顺序即持久化文档中的键序。
var schemas = map[types.RecordKind]*Schema{
	types.KindOrder: {
		Kind:        types.KindOrder,
		Prefix:      "order",
		Dir:         "orders",
		OriginKey:   "shop",
		OriginValue: ShopName,
		fields: []types.FieldSpec{
			{Name: "drink_type", JSONKey: "drinkType", Type: types.FieldString,
				Description: "The type of coffee drink ordered (e.g., latte, cappuccino, espresso)"},
			{Name: "size", JSONKey: "size", Type: types.FieldString,
				Description: "The size of the drink (small, medium, or large)"},
			{Name: "milk", JSONKey: "milk", Type: types.FieldString, Sentinel: SentinelNone,
				Description: "The milk preference (whole, skim, oat, almond, soy) or 'none' if no milk"},
			{Name: "extras", JSONKey: "extras", Type: types.FieldList, Sentinel: SentinelNone,
				Description: "Comma-separated list of extras (whipped cream, syrups, extra shot) or 'none'"},
			{Name: "name", JSONKey: "name", Type: types.FieldString, Identifier: true,
				Description: "Customer's name for the order"},
		},
	},
	types.KindMealLog: {
		Kind:        types.KindMealLog,
		Prefix:      "meal",
		Dir:         "meals",
		OriginKey:   "platform",
		OriginValue: PlatformName,
		fields: []types.FieldSpec{
			{Name: "meal_type", JSONKey: "mealType", Type: types.FieldString,
				Description: "The meal being logged (breakfast, lunch, dinner, or snack)"},
			{Name: "food_items", JSONKey: "foodItems", Type: types.FieldList,
				Description: "Comma-separated list of foods eaten"},
			{Name: "portions", JSONKey: "portions", Type: types.FieldString,
				Description: "Portion sizes for the foods (e.g., '1 bowl, 200g')"},
			{Name: "estimated_calories", JSONKey: "estimatedCalories", Type: types.FieldInt,
				Description: "Estimated total calories for the meal"},
			{Name: "meal_time", JSONKey: "mealTime", Type: types.FieldString,
				Description: "When the meal was eaten (e.g., '1:00 PM')"},
			{Name: "user_name", JSONKey: "userName", Type: types.FieldString, Identifier: true,
				Description: "The user's name"},
		},
	},
	types.KindFitnessGoal: {
		Kind:        types.KindFitnessGoal,
		Prefix:      "goal",
		Dir:         "goals",
		OriginKey:   "platform",
		OriginValue: PlatformName,
		fields: []types.FieldSpec{
			{Name: "goal_type", JSONKey: "goalType", Type: types.FieldString,
				Description: "The kind of fitness goal (weight loss, muscle gain, endurance, etc.)"},
			{Name: "current_status", JSONKey: "currentStatus", Type: types.FieldString,
				Description: "Where the user is today relative to the goal"},
			{Name: "target_metric", JSONKey: "targetMetric", Type: types.FieldString,
				Description: "The measurable target (e.g., 'lose 5 kg', 'run 10 km')"},
			{Name: "timeline", JSONKey: "timeline", Type: types.FieldString,
				Description: "The timeframe for reaching the goal"},
			{Name: "user_name", JSONKey: "userName", Type: types.FieldString, Identifier: true,
				Description: "The user's name"},
		},
	},
	types.KindHealthMetric: {
		Kind:        types.KindHealthMetric,
		Prefix:      "metric",
		Dir:         "metrics",
		OriginKey:   "platform",
		OriginValue: PlatformName,
		fields: []types.FieldSpec{
			{Name: "metric_type", JSONKey: "metricType", Type: types.FieldString,
				Description: "The health metric being tracked (weight, sleep, water intake, etc.)"},
			{Name: "value", JSONKey: "value", Type: types.FieldString,
				Description: "The measured value, including units"},
			{Name: "notes", JSONKey: "notes", Type: types.FieldText,
				Description: "Optional context for the measurement; may be empty"},
			{Name: "user_name", JSONKey: "userName", Type: types.FieldString, Identifier: true,
				Description: "The user's name"},
		},
	},
}

// SchemaFor returns the schema for the given record kind.
func SchemaFor(kind types.RecordKind) (*Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("no schema for record kind %q", kind)
	}
	return s, nil
}

// Kinds returns all record kinds with a registered schema.
func Kinds() []types.RecordKind {
	return []types.RecordKind{
		types.KindOrder,
		types.KindMealLog,
		types.KindFitnessGoal,
		types.KindHealthMetric,
	}
}
