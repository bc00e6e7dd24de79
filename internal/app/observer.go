package app

import "github.com/bft-labs/seedstream/internal/domain"

// Observer receives session events. Methods are called from the session
// goroutine or a connection goroutine and must not block.
type Observer interface {
	OnConnectionState(key string, state ConnState)
	OnFrameSubmitted(frame domain.RequestFrame)
	OnFrameTransmitted(frame domain.RequestFrame)
	OnSeedChanged(seed domain.SeedState)
	OnDisplay(display domain.DisplayState)
	OnError(err error)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnConnectionState(string, ConnState)    {}
func (NopObserver) OnFrameSubmitted(domain.RequestFrame)   {}
func (NopObserver) OnFrameTransmitted(domain.RequestFrame) {}
func (NopObserver) OnSeedChanged(domain.SeedState)         {}
func (NopObserver) OnDisplay(domain.DisplayState)          {}
func (NopObserver) OnError(error)                          {}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) OnConnectionState(key string, state ConnState) {
	for _, obs := range o {
		obs.OnConnectionState(key, state)
	}
}

func (o Observers) OnFrameSubmitted(frame domain.RequestFrame) {
	for _, obs := range o {
		obs.OnFrameSubmitted(frame)
	}
}

func (o Observers) OnFrameTransmitted(frame domain.RequestFrame) {
	for _, obs := range o {
		obs.OnFrameTransmitted(frame)
	}
}

func (o Observers) OnSeedChanged(seed domain.SeedState) {
	for _, obs := range o {
		obs.OnSeedChanged(seed)
	}
}

func (o Observers) OnDisplay(display domain.DisplayState) {
	for _, obs := range o {
		obs.OnDisplay(display)
	}
}

func (o Observers) OnError(err error) {
	for _, obs := range o {
		obs.OnError(err)
	}
}

var (
	_ Observer = NopObserver{}
	_ Observer = Observers(nil)
)
