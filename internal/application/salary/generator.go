// Package salary 生成用于前端原型的模拟薪资统计
//
// 结果只由 (tech, location, experience) 决定，不含随机数与外部 I/O；
// 唯一的例外是 last_updated，它来自注入的时钟。
package salary

import (
	"strings"
	"time"

	"skillforge-api/internal/domain/entity"
)

const (
	DefaultLocation   = "India"
	DefaultExperience = "mid"

	currency        = "INR"
	baseMedianFloor = 800000
	trendFirstYear  = 2021
	trendLastYear   = 2025
	timestampLayout = "2006-01-02T15:04:05Z"
)

var experienceMultipliers = map[string]float64{
	"entry":  0.65,
	"junior": 0.75,
	"mid":    1.0,
	"senior": 1.45,
	"lead":   1.8,
}

var metroCities = []string{"Bengaluru", "Mumbai", "NCR", "Hyderabad", "Pune"}

// Clock 时间来源
type Clock func() time.Time

// Generator 模拟薪资生成器
type Generator struct {
	now Clock
}

func NewGenerator(now Clock) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Generate 生成薪资报告；Tech 需已去除首尾空白且非空
func (g *Generator) Generate(q entity.SalaryQuery) *entity.SalaryReport {
	exp := q.Experience
	if exp == "" {
		exp = DefaultExperience
	}

	h := techHash(q.Tech)
	baseMedian := baseMedianFloor + h*24

	multiplier, ok := experienceMultipliers[strings.ToLower(exp)]
	if !ok {
		multiplier = 1.0
	}
	median := int(float64(baseMedian) * multiplier)

	trend := make([]entity.SalaryTrendPoint, 0, trendLastYear-trendFirstYear+1)
	trendBase := median - 120000
	for year := trendFirstYear; year <= trendLastYear; year++ {
		offset := (year - trendFirstYear) * (h % 30000) / 4
		trend = append(trend, entity.SalaryTrendPoint{Year: year, Median: trendBase + offset})
	}

	cities := make([]entity.CitySalary, 0, len(metroCities))
	for i, city := range metroCities {
		factor := 1.0 + float64(i)*0.08
		cities = append(cities, entity.CitySalary{
			City:       city,
			Median:     int(float64(median) * factor),
			SampleSize: 80 - i*8,
		})
	}

	return &entity.SalaryReport{
		Tech:          q.Tech,
		Location:      q.Location,
		Experience:    exp,
		Currency:      currency,
		Median:        median,
		P25:           int(float64(median) * 0.75),
		P75:           int(float64(median) * 1.35),
		Min:           int(float64(median) * 0.45),
		Max:           int(float64(median) * 3.1),
		SampleSize:    500 + h%800,
		Sources:       map[string]int{"mock": 1},
		Trend:         trend,
		DemandIndex:   50 + h%50,
		CityBreakdown: cities,
		LastUpdated:   g.now().UTC().Format(timestampLayout),
	}
}

// techHash 码点之和对 100000 取模
func techHash(tech string) int {
	sum := 0
	for _, r := range tech {
		sum += int(r)
	}
	return sum % 100000
}
