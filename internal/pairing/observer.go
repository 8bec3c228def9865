package pairing

type Observer interface {
	Paired(info PairInfo)
	Unpaired(id, partnerID string)
	Occupancy(o Occupancy)
}

type Observers []Observer

func (o Observers) Paired(info PairInfo) {
	for _, obs := range o {
		obs.Paired(info)
	}
}

func (o Observers) Unpaired(id, partnerID string) {
	for _, obs := range o {
		obs.Unpaired(id, partnerID)
	}
}

func (o Observers) Occupancy(occ Occupancy) {
	for _, obs := range o {
		obs.Occupancy(occ)
	}
}
