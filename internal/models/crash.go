package models

import (
	"math"
	"strconv"
	"time"
)

// Column names of the crash dataset referenced by the dashboard.
const (
	ColCrashRecordID             = "CRASH_RECORD_ID"
	ColPrimaryCause              = "PRIM_CONTRIBUTORY_CAUSE"
	ColSecondaryCause            = "SEC_CONTRIBUTORY_CAUSE"
	ColWeather                   = "WEATHER_CONDITION"
	ColLighting                  = "LIGHTING_CONDITION"
	ColFirstCrashType            = "FIRST_CRASH_TYPE"
	ColDamage                    = "DAMAGE"
	ColCrashMonth                = "CRASH_MONTH"
	ColCrashDayOfWeek            = "CRASH_DAY_OF_WEEK"
	ColCrashHour                 = "CRASH_HOUR"
	ColInjuriesFatal             = "INJURIES_FATAL"
	ColInjuriesIncapacitating    = "INJURIES_INCAPACITATING"
	ColInjuriesNonIncapacitating = "INJURIES_NON_INCAPACITATING"
	ColInjuriesNoIndication      = "INJURIES_NO_INDICATION"
)

// Sentinel category values meaning "unknown" or "inapplicable".
const (
	SentinelUnableToDetermine = "UNABLE TO DETERMINE"
	SentinelNotApplicable     = "NOT APPLICABLE"
	SentinelUnknown           = "UNKNOWN"
	SentinelOther             = "OTHER"
)

// Weather categories used by the incident-rate view.
const (
	WeatherClear = "CLEAR"
	WeatherRain  = "RAIN"
	WeatherSnow  = "SNOW"
)

// CategoricalColumns are loaded as strings.
var CategoricalColumns = []string{
	ColPrimaryCause,
	ColSecondaryCause,
	ColWeather,
	ColLighting,
	ColFirstCrashType,
	ColDamage,
}

// TimeColumns are the recognized time-unit grouping keys, in dropdown order.
var TimeColumns = []string{
	ColCrashMonth,
	ColCrashDayOfWeek,
	ColCrashHour,
}

// InjuryColumns in the order the injury totals table lists them.
var InjuryColumns = []string{
	ColInjuriesFatal,
	ColInjuriesIncapacitating,
	ColInjuriesNonIncapacitating,
	ColInjuriesNoIndication,
}

// RequiredColumns must all be present in a loaded dataset.
func RequiredColumns() []string {
	cols := make([]string, 0, len(CategoricalColumns)+len(TimeColumns)+len(InjuryColumns))
	cols = append(cols, CategoricalColumns...)
	cols = append(cols, TimeColumns...)
	cols = append(cols, InjuryColumns...)
	return cols
}

// IsTimeColumn reports whether col is one of TimeColumns.
func IsTimeColumn(col string) bool {
	for _, c := range TimeColumns {
		if c == col {
			return true
		}
	}
	return false
}

// CrashRecord is one persisted crash row (Postgres dataset source).
type CrashRecord struct {
	ID                        int64     `json:"id" db:"id"`
	CrashRecordID             string    `json:"crash_record_id" db:"crash_record_id"`
	PrimaryCause              string    `json:"prim_contributory_cause" db:"prim_contributory_cause"`
	SecondaryCause            string    `json:"sec_contributory_cause" db:"sec_contributory_cause"`
	WeatherCondition          string    `json:"weather_condition" db:"weather_condition"`
	LightingCondition         string    `json:"lighting_condition" db:"lighting_condition"`
	FirstCrashType            string    `json:"first_crash_type" db:"first_crash_type"`
	Damage                    string    `json:"damage" db:"damage"`
	CrashMonth                *int      `json:"crash_month,omitempty" db:"crash_month"`
	CrashDayOfWeek            *int      `json:"crash_day_of_week,omitempty" db:"crash_day_of_week"`
	CrashHour                 *int      `json:"crash_hour,omitempty" db:"crash_hour"`
	InjuriesFatal             *int      `json:"injuries_fatal,omitempty" db:"injuries_fatal"`
	InjuriesIncapacitating    *int      `json:"injuries_incapacitating,omitempty" db:"injuries_incapacitating"`
	InjuriesNonIncapacitating *int      `json:"injuries_non_incapacitating,omitempty" db:"injuries_non_incapacitating"`
	InjuriesNoIndication      *int      `json:"injuries_no_indication,omitempty" db:"injuries_no_indication"`
	CreatedAt                 time.Time `json:"created_at" db:"created_at"`
}

// RecordHeader is the column order produced by CrashRecord.Values.
func RecordHeader() []string {
	return append([]string{ColCrashRecordID}, RequiredColumns()...)
}

// Values renders the record in RecordHeader order. NULL numbers become "".
func (r *CrashRecord) Values() []string {
	return []string{
		r.CrashRecordID,
		r.PrimaryCause,
		r.SecondaryCause,
		r.WeatherCondition,
		r.LightingCondition,
		r.FirstCrashType,
		r.Damage,
		formatNullable(r.CrashMonth),
		formatNullable(r.CrashDayOfWeek),
		formatNullable(r.CrashHour),
		formatNullable(r.InjuriesFatal),
		formatNullable(r.InjuriesIncapacitating),
		formatNullable(r.InjuriesNonIncapacitating),
		formatNullable(r.InjuriesNoIndication),
	}
}

// CrashRecordFromRow builds a record from a header-keyed row. Blank or
// non-numeric counts are stored as NULL.
func CrashRecordFromRow(row map[string]string) *CrashRecord {
	return &CrashRecord{
		CrashRecordID:             row[ColCrashRecordID],
		PrimaryCause:              row[ColPrimaryCause],
		SecondaryCause:            row[ColSecondaryCause],
		WeatherCondition:          row[ColWeather],
		LightingCondition:         row[ColLighting],
		FirstCrashType:            row[ColFirstCrashType],
		Damage:                    row[ColDamage],
		CrashMonth:                parseNullable(row[ColCrashMonth]),
		CrashDayOfWeek:            parseNullable(row[ColCrashDayOfWeek]),
		CrashHour:                 parseNullable(row[ColCrashHour]),
		InjuriesFatal:             parseNullable(row[ColInjuriesFatal]),
		InjuriesIncapacitating:    parseNullable(row[ColInjuriesIncapacitating]),
		InjuriesNonIncapacitating: parseNullable(row[ColInjuriesNonIncapacitating]),
		InjuriesNoIndication:      parseNullable(row[ColInjuriesNoIndication]),
		CreatedAt:                 time.Now().UTC(),
	}
}

func formatNullable(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// parseNullable accepts integers and floats ("3", "3.0"); fractions are
// truncated the way the dashboard counts them.
func parseNullable(s string) *int {
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(f)
	return &n
}
