// 错误分类与处理
// 数据缺失类错误可降级处理，外部 I/O 错误终止本次回测
package errors

import (
	"context"
	"errors"
)

// ErrorLevel 错误级别
type ErrorLevel int

const (
	// L1Recoverable 可恢复错误 - 自动重试或降级
	L1Recoverable ErrorLevel = iota + 1
	// L2Intervention 需要人工干预
	L2Intervention
	// L3Fatal 致命错误 - 终止回测
	L3Fatal
)

func (l ErrorLevel) String() string {
	switch l {
	case L1Recoverable:
		return "L1_RECOVERABLE"
	case L2Intervention:
		return "L2_INTERVENTION"
	case L3Fatal:
		return "L3_FATAL"
	default:
		return "UNKNOWN"
	}
}

// 预定义错误类型
var (
	ErrPriceDataMissing   = errors.New("price data missing")
	ErrRevenueUnavailable = errors.New("company revenue unavailable")
	ErrExpiryUnparseable  = errors.New("patent expiry date unparseable")
	ErrSnapshotMissing    = errors.New("orange book snapshot missing")
	ErrEmptyUniverse      = errors.New("no tickers in universe")
	ErrBridgeUnavailable  = errors.New("market data bridge unavailable")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrCacheUnavailable   = errors.New("cache unavailable")
)

// ClassifiedError 分类后的错误
type ClassifiedError struct {
	Level      ErrorLevel
	Code       string
	Message    string
	Cause      error
	Retryable  bool
	MaxRetries int
	Metadata   map[string]interface{}
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ClassifyError 对错误进行分类
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	// 检查是否已经是 ClassifiedError
	var classifiedErr *ClassifiedError
	if errors.As(err, &classifiedErr) {
		return classifiedErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "TIMEOUT",
			Message:    "Operation timed out",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	// 数据可用性错误：降级处理（剔除记录或使用兜底值），不终止回测
	case errors.Is(err, ErrPriceDataMissing):
		return &ClassifiedError{
			Level:     L1Recoverable,
			Code:      "PRICE_DATA_MISSING",
			Message:   "Price data missing for ticker/date",
			Cause:     err,
			Retryable: false,
			Metadata:  map[string]interface{}{"fallback": "zero_contribution"},
		}

	case errors.Is(err, ErrRevenueUnavailable):
		return &ClassifiedError{
			Level:     L1Recoverable,
			Code:      "REVENUE_UNAVAILABLE",
			Message:   "Company revenue unavailable",
			Cause:     err,
			Retryable: false,
			Metadata:  map[string]interface{}{"fallback": "constant"},
		}

	// 配置/解析错误：跳过单条记录
	case errors.Is(err, ErrExpiryUnparseable):
		return &ClassifiedError{
			Level:     L1Recoverable,
			Code:      "EXPIRY_UNPARSEABLE",
			Message:   "Patent expiry date could not be parsed",
			Cause:     err,
			Retryable: false,
			Metadata:  map[string]interface{}{"fallback": "skip_record"},
		}

	case errors.Is(err, ErrSnapshotMissing):
		return &ClassifiedError{
			Level:     L2Intervention,
			Code:      "SNAPSHOT_MISSING",
			Message:   "Orange Book snapshot not loaded",
			Cause:     err,
			Retryable: false,
		}

	case errors.Is(err, ErrEmptyUniverse):
		return &ClassifiedError{
			Level:     L2Intervention,
			Code:      "EMPTY_UNIVERSE",
			Message:   "Drug universe resolves to no tickers",
			Cause:     err,
			Retryable: false,
		}

	// 外部 I/O 错误：对本次回测致命，但可重试
	case errors.Is(err, ErrBridgeUnavailable):
		return &ClassifiedError{
			Level:      L3Fatal,
			Code:       "BRIDGE_UNAVAILABLE",
			Message:    "Market data bridge unavailable",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	case errors.Is(err, ErrCacheUnavailable):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "CACHE_UNAVAILABLE",
			Message:    "Cache service unavailable",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	case errors.Is(err, ErrConfigInvalid):
		return &ClassifiedError{
			Level:     L3Fatal,
			Code:      "FATAL_CONFIG",
			Message:   "Fatal configuration error",
			Cause:     err,
			Retryable: false,
		}

	default:
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "UNKNOWN",
			Message:    "Unknown error",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 1,
		}
	}
}

// NewClassifiedError 创建分类错误
func NewClassifiedError(level ErrorLevel, code, message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Level:   level,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithLevel 包装错误并指定级别
func WrapWithLevel(err error, level ErrorLevel, message string) *ClassifiedError {
	classified := ClassifyError(err)
	classified.Level = level
	if message != "" {
		classified.Message = message
	}
	return classified
}
