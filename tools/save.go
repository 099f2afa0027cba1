package tools

import (
	"fmt"
	"strings"

	"github.com/BaSui01/intake/record"
	"github.com/BaSui01/intake/types"
)

// Operation names exposed to the conversational driver.
const (
	OpSaveOrder         = "save_order"
	OpLogMeal           = "log_meal"
	OpSetFitnessGoal    = "set_fitness_goal"
	OpTrackHealthMetric = "track_health_metric"
)

// SaveOrder returns the tool that persists a completed coffee order.
func SaveOrder() *Tool {
	return mustTool(
		OpSaveOrder,
		"Save the completed coffee order to a JSON file. Use this tool ONLY when you have collected all order information from the customer.",
		types.KindOrder,
		confirmOrder,
	)
}

// LogMeal returns the tool that persists a meal log entry.
func LogMeal() *Tool {
	return mustTool(
		OpLogMeal,
		"Log the completed meal entry. Use this tool ONLY when you have collected all meal details from the user.",
		types.KindMealLog,
		confirmMeal,
	)
}

// SetFitnessGoal returns the tool that persists a fitness goal.
func SetFitnessGoal() *Tool {
	return mustTool(
		OpSetFitnessGoal,
		"Save the user's fitness goal. Use this tool ONLY when you have collected the full goal, current status, target, and timeline.",
		types.KindFitnessGoal,
		confirmGoal,
	)
}

// TrackHealthMetric returns the tool that persists one health
// measurement.
func TrackHealthMetric() *Tool {
	return mustTool(
		OpTrackHealthMetric,
		"Record a health metric measurement. Use this tool ONLY when you have the metric, its value, and any notes from the user.",
		types.KindHealthMetric,
		confirmMetric,
	)
}

// All returns every persistence tool, ready for registration.
func All() []*Tool {
	return []*Tool{SaveOrder(), LogMeal(), SetFitnessGoal(), TrackHealthMetric()}
}

// mustTool builds a tool whose parameter schema is derived from the
// kind's field table. Schemas are static, so a failure here is a
// programming error.
func mustTool(name, description string, kind types.RecordKind, confirm ConfirmFunc) *Tool {
	rs, err := record.SchemaFor(kind)
	if err != nil {
		panic(fmt.Sprintf("tools: %v", err))
	}
	params, err := BuildParameters(rs)
	if err != nil {
		panic(fmt.Sprintf("tools: %v", err))
	}
	return &Tool{
		Schema: Schema{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
		Kind:    kind,
		Confirm: confirm,
	}
}

// =============================================================================
// 🗣️ 确认话术
// =============================================================================

func confirmOrder(rec *types.Record) string {
	size := fieldString(rec, "size")
	drink := fieldString(rec, "drinkType")
	milk := fieldString(rec, "milk")
	name := fieldString(rec, "name")
	extras := fieldList(rec, "extras")

	msg := fmt.Sprintf("Perfect! Your order has been saved. That's a %s %s with %s milk", size, drink, milk)
	if len(extras) > 0 {
		msg += " and " + strings.Join(extras, ", ")
	}
	msg += fmt.Sprintf(" for %s. Your order will be ready shortly!", name)
	return msg
}

func confirmMeal(rec *types.Record) string {
	mealType := fieldString(rec, "mealType")
	foods := fieldList(rec, "foodItems")
	portions := fieldString(rec, "portions")
	calories := fieldInt(rec, "estimatedCalories")
	mealTime := fieldString(rec, "mealTime")
	name := fieldString(rec, "userName")

	return fmt.Sprintf(
		"Got it! I've logged your %s at %s: %s (%s), around %d calories. Nice work, %s!",
		mealType, mealTime, strings.Join(foods, ", "), portions, calories, name,
	)
}

func confirmGoal(rec *types.Record) string {
	goalType := fieldString(rec, "goalType")
	status := fieldString(rec, "currentStatus")
	target := fieldString(rec, "targetMetric")
	timeline := fieldString(rec, "timeline")
	name := fieldString(rec, "userName")

	return fmt.Sprintf(
		"Your %s goal is set: %s within %s, starting from %s. You've got this, %s!",
		goalType, target, timeline, status, name,
	)
}

func confirmMetric(rec *types.Record) string {
	metricType := fieldString(rec, "metricType")
	value := fieldString(rec, "value")
	notes := fieldString(rec, "notes")
	name := fieldString(rec, "userName")

	msg := fmt.Sprintf("Recorded your %s: %s.", metricType, value)
	if strings.TrimSpace(notes) != "" {
		msg += " Noted: " + notes + "."
	}
	msg += fmt.Sprintf(" Thanks, %s!", name)
	return msg
}

func fieldString(rec *types.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func fieldList(rec *types.Record, key string) []string {
	v, _ := rec.Get(key)
	l, _ := v.([]string)
	return l
}

func fieldInt(rec *types.Record, key string) int {
	v, _ := rec.Get(key)
	n, _ := v.(int)
	return n
}
