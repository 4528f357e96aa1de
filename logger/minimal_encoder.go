package logger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Gruvbox Dark color palette (warm, muted, easy on eyes)
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorFg       = "\x1b[38;5;223m" // Soft cream (#ebdbb2)
	colorAqua     = "\x1b[38;5;108m" // Muted cyan-green (#8ec07c)
	colorOrange   = "\x1b[38;5;208m" // Warm orange (#fe8019)
	colorYellow   = "\x1b[38;5;214m" // Soft yellow (#fabd2f)
	colorGreen    = "\x1b[38;5;142m" // Muted green (#b8bb26)
	colorBlue     = "\x1b[38;5;109m" // Soft blue (#83a598)
	colorPurple   = "\x1b[38;5;175m" // Muted purple (#d3869b)
	colorRed      = "\x1b[38;5;167m" // Warm red (#fb4934)
	colorRedBg    = "\x1b[48;5;88m"  // Dark red background
	colorYellowBg = "\x1b[48;5;58m"  // Dark yellow background
)

// minimalEncoder implements a calm, compact console encoder
// Format: "13:04:35  g.pipeline  Generated parser  OrgParser 42ms"
type minimalEncoder struct {
	zapcore.Encoder // Embed a base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	// Create a base JSON encoder for field serialization (internal use only)
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	// Time
	final.AppendString(colorAqua)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only show for WARN/ERROR with bold + background
	if ent.Level != zapcore.InfoLevel && ent.Level != zapcore.DebugLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	// Component name (abbreviated) for visual grouping
	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorComponent(ent.LoggerName))
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	// Message
	final.AppendString("  ")
	final.AppendString(colorMessage(ent.Message))
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	// Fields: known keys get compact value-only formatting, everything
	// else falls back to key=value so nothing is ever dropped
	if rendered := renderFields(fields); rendered != "" {
		final.AppendString("  ")
		final.AppendString(rendered)
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for WARN/ERROR
func levelColorString(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colorYellowBg + colorYellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colorRedBg + colorRed + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorRedBg + colorRed + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// colorComponent hashes the component name to a stable color
func colorComponent(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	if hash%2 == 0 {
		return colorOrange
	}
	return colorYellow
}

// colorMessage picks a message color from its content
func colorMessage(msg string) string {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "stale") || strings.Contains(lower, "generated") ||
		strings.Contains(lower, "up to date") || strings.Contains(lower, "processed") {
		return colorGreen
	}
	if strings.Contains(lower, "watch") || strings.Contains(lower, "change") {
		return colorBlue
	}
	if strings.Contains(lower, "starting") || strings.Contains(lower, "config") ||
		strings.Contains(lower, "skipping") {
		return colorOrange
	}
	return colorFg
}

// abbreviateName shortens component names: scanner -> scanner, gen.pipeline -> g.pipeline
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// renderFields formats structured fields for the console line.
// Identity-like keys (program, namespace, session) are shown value-only in
// blue, numeric timing/count keys get the number color, and any other field
// is emitted as key=value. No field is ever silently discarded.
func renderFields(fields []zapcore.Field) string {
	var values []string

	for _, field := range fields {
		if field.Type == zapcore.SkipType {
			continue
		}

		val := fieldValue(field)
		switch field.Key {
		case FieldProgram, FieldNamespace, FieldSession:
			if val != "" {
				values = append(values, colorBlue+val+colorReset)
			}
		case FieldDurationMS:
			if val != "" {
				values = append(values, colorPurple+val+colorReset+"ms")
			}
		case FieldCount, FieldStale:
			if val != "" {
				values = append(values, colorPurple+val+colorReset)
			}
		default:
			values = append(values, colorFg+field.Key+"="+val+colorReset)
		}
	}

	return strings.Join(values, " ")
}

// fieldValue extracts a printable value from a zap field across the
// field types zap actually produces
func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.BoolType:
		if field.Integer == 1 {
			return "true"
		}
		return "false"
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return strconv.FormatInt(field.Integer, 10)
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type, zapcore.UintptrType:
		return strconv.FormatUint(uint64(field.Integer), 10)
	case zapcore.Float64Type:
		return strconv.FormatFloat(math.Float64frombits(uint64(field.Integer)), 'g', -1, 64)
	case zapcore.Float32Type:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(field.Integer))), 'g', -1, 32)
	case zapcore.DurationType:
		return time.Duration(field.Integer).String()
	case zapcore.TimeType:
		return time.Unix(0, field.Integer).Format(time.RFC3339)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			return err.Error()
		}
		return ""
	case zapcore.StringerType:
		if s, ok := field.Interface.(fmt.Stringer); ok {
			return s.String()
		}
		return ""
	default:
		if field.Interface != nil {
			return fmt.Sprintf("%v", field.Interface)
		}
		return field.String
	}
}
