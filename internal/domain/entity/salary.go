package entity

// SalaryQuery 薪资查询条件
type SalaryQuery struct {
	Tech string
	// Location 原样回显；JSON 请求显式传 null 时为 nil
	Location   *string
	Experience string
}

// SalaryTrendPoint 年度中位数
type SalaryTrendPoint struct {
	Year   int `json:"year"`
	Median int `json:"median"`
}

// CitySalary 城市维度中位数
type CitySalary struct {
	City       string `json:"city"`
	Median     int    `json:"median"`
	SampleSize int    `json:"sample_size"`
}

// SalaryReport 模拟薪资统计
type SalaryReport struct {
	Tech          string             `json:"tech"`
	Location      *string            `json:"location"`
	Experience    string             `json:"experience"`
	Currency      string             `json:"currency"`
	Median        int                `json:"median"`
	P25           int                `json:"p25"`
	P75           int                `json:"p75"`
	Min           int                `json:"min"`
	Max           int                `json:"max"`
	SampleSize    int                `json:"sample_size"`
	Sources       map[string]int     `json:"sources"`
	Trend         []SalaryTrendPoint `json:"trend"`
	DemandIndex   int                `json:"demand_index"`
	CityBreakdown []CitySalary       `json:"city_breakdown"`
	LastUpdated   string             `json:"last_updated"`
}
