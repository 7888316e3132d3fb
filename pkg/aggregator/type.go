package aggregator

import "github.com/NotCoffee418/dsmr_telegram/pkg/meterdb"

type Timeframe uint8

const (
	Hourly Timeframe = iota
	Daily
	Monthly
)

func (tf Timeframe) String() string {
	switch tf {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	}
	return "unknown"
}

type AggregateData struct {
	Timeframe          Timeframe
	EndTime            int64
	IsInDb             bool
	IsCurrentTimeframe bool
	Aggregate          meterdb.AggregateLivePowerTable
}
