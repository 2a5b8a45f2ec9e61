package models

// IntentSlot is one side (source or destination) of a resolved transfer intent.
type IntentSlot struct {
	ChainID   string `json:"chain_id,omitempty"`
	ChainName string `json:"chain_name,omitempty"`
	ChainLogo string `json:"chain_logo,omitempty"`
	Denom     string `json:"denom,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Decimals  uint32 `json:"decimals,omitempty"`
	AssetLogo string `json:"asset_logo,omitempty"`
}

// Resolved reports whether both the chain and the denom are locked.
func (s IntentSlot) Resolved() bool {
	return s.ChainID != "" && s.Denom != ""
}

// ResolvedIntent is the outcome of resolving a parsed transfer description.
type ResolvedIntent struct {
	Amount string     `json:"amount,omitempty"`
	Src    IntentSlot `json:"src"`
	Dst    IntentSlot `json:"dst"`
}

// IsComplete reports whether the intent can feed the transfer pipeline.
func (r ResolvedIntent) IsComplete() bool {
	return r.Src.Resolved() && r.Dst.Resolved()
}

// FormValues converts a complete intent into transfer form values.
func (r ResolvedIntent) FormValues() FormValues {
	return FormValues{
		SrcChainID: r.Src.ChainID,
		SrcDenom:   r.Src.Denom,
		DstChainID: r.Dst.ChainID,
		DstDenom:   r.Dst.Denom,
		Quantity:   r.Amount,
	}
}
