package domain

import "encoding/json"

type Dimension string

const (
	DimBrand    Dimension = "brand"
	DimPackType Dimension = "packtype"
	DimPPG      Dimension = "ppg"
	DimChannel  Dimension = "channel"
	DimYear     Dimension = "year"
)

// FilterDimensions is the closed, ordered set of filterable columns.
var FilterDimensions = []Dimension{DimBrand, DimPackType, DimPPG, DimChannel, DimYear}

// IndexColumns are the analytic columns that get secondary indexes when present.
var IndexColumns = []string{"brand", "packtype", "ppg", "channel", "year", "month", "date"}

// Filters holds optional dimension values as received from the caller.
// An empty string means "no filter".
type Filters struct {
	Brand    string `json:"brand,omitempty"`
	PackType string `json:"packType,omitempty"`
	PPG      string `json:"ppg,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Year     string `json:"year,omitempty"`
}

func (f Filters) Get(dim Dimension) string {
	switch dim {
	case DimBrand:
		return f.Brand
	case DimPackType:
		return f.PackType
	case DimPPG:
		return f.PPG
	case DimChannel:
		return f.Channel
	case DimYear:
		return f.Year
	default:
		return ""
	}
}

// Row is one result record keyed by column name.
type Row map[string]any

type DatasetInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type AnalyticsReport struct {
	DatasetInfo       DatasetInfo `json:"dataset_info"`
	SalesByBrandYear  []Row       `json:"sales_by_brand_year"`
	VolumeByBrandYear []Row       `json:"volume_by_brand_year"`
	YearlyComparison  []Row       `json:"yearly_comparison"`
	MonthlyTrend      []Row       `json:"monthly_trend"`
	MarketShare       []Row       `json:"market_share"`
}

// FilterOptions lists distinct values per dimension for UI filter controls.
type FilterOptions struct {
	Status DatasetStatus
	Values map[Dimension][]any
}

func EmptyFilterOptions(status DatasetStatus) FilterOptions {
	values := make(map[Dimension][]any, len(FilterDimensions))
	for _, dim := range FilterDimensions {
		values[dim] = []any{}
	}
	return FilterOptions{Status: status, Values: values}
}

// MarshalJSON renders one list per dimension; status appears only while the
// dataset is not completed.
func (o FilterOptions) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(FilterDimensions)+1)
	for _, dim := range FilterDimensions {
		list := o.Values[dim]
		if list == nil {
			list = []any{}
		}
		out[string(dim)] = list
	}
	if o.Status != "" && o.Status != StatusCompleted {
		out["status"] = o.Status
	}
	return json.Marshal(out)
}
