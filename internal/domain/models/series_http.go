package models

// Requests and responses for the series HTTP endpoints.

type CreateSeriesRequest struct {
	SeriesID            string   `json:"seriesId" validate:"required,max=128"`
	Name                string   `json:"name" validate:"max=256"`
	DataType            string   `json:"dataType" default:"CONTINUOUS" validate:"oneof=CONTINUOUS DISCRETE"`
	Metrics             []string `json:"metrics" validate:"required,min=1"`
	GranularityLevels   []string `json:"granularityLevels" validate:"required,min=1"`
	MissingDataStrategy string   `json:"missingDataStrategy" default:"USE_PREVIOUS" validate:"oneof=USE_PREVIOUS USE_ZERO"`
}

// SeriesIDParam binds the :id path segment.
type SeriesIDParam struct {
	SeriesID string `param:"id" validate:"required"`
}

// AddPointRequest carries one observation. Timestamp is unix milliseconds;
// a missing timestamp or value is rejected as an invalid data point.
type AddPointRequest struct {
	SeriesID  string   `param:"id" json:"-" validate:"required"`
	Timestamp *int64   `json:"timestamp"`
	Value     *float64 `json:"value"`
	Volume    *float64 `json:"volume,omitempty"`
}

type PointPayload struct {
	Timestamp *int64   `json:"timestamp"`
	Value     *float64 `json:"value"`
	Volume    *float64 `json:"volume,omitempty"`
}

type AddPointsBatchRequest struct {
	SeriesID string         `param:"id" json:"-" validate:"required"`
	Points   []PointPayload `json:"points" validate:"required,min=1,max=10000"`
}

// WindowsRequest queries closed windows. Start and End accept RFC3339 or
// unix milliseconds.
type WindowsRequest struct {
	SeriesID    string `param:"id" validate:"required"`
	Granularity string `query:"granularity" validate:"required"`
	Start       string `query:"start" validate:"required"`
	End         string `query:"end" validate:"required"`
	Limit       int    `query:"limit" default:"10000" validate:"gte=1,lte=100000"`
}

type LatestRequest struct {
	SeriesID    string `param:"id" validate:"required"`
	Granularity string `query:"granularity" validate:"required"`
}

type SeriesResponse struct {
	SeriesID            string   `json:"seriesId"`
	Name                string   `json:"name"`
	DataType            string   `json:"dataType"`
	Metrics             []string `json:"metrics"`
	GranularityLevels   []string `json:"granularityLevels"`
	MissingDataStrategy string   `json:"missingDataStrategy"`
}

func NewSeriesResponse(d SeriesDefinition) SeriesResponse {
	ms := d.MetricSet().Metrics()
	metrics := make([]string, 0, len(ms))
	for _, m := range ms {
		metrics = append(metrics, string(m))
	}
	levels := make([]string, 0, len(d.GranularityLevels))
	for _, g := range d.GranularityLevels {
		levels = append(levels, g.Label())
	}
	return SeriesResponse{
		SeriesID:            d.SeriesID,
		Name:                d.Name,
		DataType:            string(d.DataType),
		Metrics:             metrics,
		GranularityLevels:   levels,
		MissingDataStrategy: string(d.MissingDataStrategy),
	}
}

// WindowResponse omits metrics the series did not request.
type WindowResponse struct {
	SeriesID       string   `json:"seriesId"`
	Granularity    string   `json:"granularity"`
	StartTime      int64    `json:"startTime"`
	EndTime        int64    `json:"endTime"`
	Open           *float64 `json:"open,omitempty"`
	High           *float64 `json:"high,omitempty"`
	Low            *float64 `json:"low,omitempty"`
	Close          *float64 `json:"close,omitempty"`
	Volume         *float64 `json:"volume,omitempty"`
	VWAP           *float64 `json:"vwap,omitempty"`
	DataPointCount int      `json:"dataPointCount"`
	Filler         bool     `json:"filler"`
	Closed         bool     `json:"closed"`
}

func NewWindowResponse(w AggregatedWindow, closed bool) WindowResponse {
	pick := func(m Metric, v float64) *float64 {
		if !w.Metrics.Has(m) {
			return nil
		}
		return &v
	}
	return WindowResponse{
		SeriesID:       w.SeriesID,
		Granularity:    w.Granularity.Label(),
		StartTime:      w.StartTime.UnixMilli(),
		EndTime:        w.EndTime.UnixMilli(),
		Open:           pick(MetricOpen, w.Open),
		High:           pick(MetricHigh, w.High),
		Low:            pick(MetricLow, w.Low),
		Close:          pick(MetricClose, w.Close),
		Volume:         pick(MetricVolume, w.Volume),
		VWAP:           pick(MetricVWAP, w.VWAP),
		DataPointCount: w.DataPointCount,
		Filler:         w.Filler,
		Closed:         closed,
	}
}

func NewWindowResponses(ws []AggregatedWindow) []WindowResponse {
	out := make([]WindowResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, NewWindowResponse(w, true))
	}
	return out
}

// Window rebuilds the domain window. Metrics absent from the payload are
// left out of the metric set.
func (r WindowResponse) Window() (AggregatedWindow, error) {
	g, err := ParseGranularity(r.Granularity)
	if err != nil {
		return AggregatedWindow{}, err
	}
	w := AggregatedWindow{
		SeriesID:       r.SeriesID,
		Granularity:    g,
		StartTime:      MsToTime(r.StartTime),
		EndTime:        MsToTime(r.EndTime),
		DataPointCount: r.DataPointCount,
		Filler:         r.Filler,
	}
	var ms []Metric
	for _, f := range []struct {
		m   Metric
		src *float64
		dst *float64
	}{
		{MetricOpen, r.Open, &w.Open},
		{MetricHigh, r.High, &w.High},
		{MetricLow, r.Low, &w.Low},
		{MetricClose, r.Close, &w.Close},
		{MetricVolume, r.Volume, &w.Volume},
		{MetricVWAP, r.VWAP, &w.VWAP},
	} {
		if f.src != nil {
			*f.dst = *f.src
			ms = append(ms, f.m)
		}
	}
	w.Metrics = NewMetricSet(ms...)
	return w, nil
}

// BatchResult reports how many points of a batch were accepted before the
// first rejection.
type BatchResult struct {
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Error    string `json:"error,omitempty"`
}

// TickMessage is the JSON payload consumed from the ticks topic and the
// websocket feed. "t" is unix milliseconds and is required; seconds are
// accepted only when epoch_seconds is enabled for ticks.
type TickMessage struct {
	SeriesID  string   `json:"s"`
	Price     float64  `json:"p"`
	Volume    *float64 `json:"v,omitempty"`
	Timestamp *int64   `json:"t"`
}
