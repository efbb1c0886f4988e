package main

// Payment routing. Given probed wallet capabilities and the recipient mix,
// pick which rail the batch rides: NWC or the direct (WebLN-shaped) wallet.
// Pure function; the decision never fails. A dead-end combination still
// yields a route whose downstream payment calls report the real error.

// RouteDecision is the routing outcome for one payment batch.
type RouteDecision struct {
	UseNWC bool   `json:"useNWC"`
	Reason string `json:"reason"`
}

// RoutePayment walks the priority ladder, first matching rule wins.
//
// Rungs, in order:
//  1. explicit NWC connector selection overrides everything
//  2. address-only batches prefer NWC, then WebLN
//  3. WebLN handles keysend targets when no NWC preference exists
//  4. Cashu-class NWC wallets lack native keysend; sub-decide on bridge
//     and WebLN availability against the recipient mix
//  5. non-Cashu NWC handles everything natively
//  6. WebLN fallback
//  7. nothing connected: route anyway, the executor reports the failure
func RoutePayment(caps WalletCapabilities, mix RecipientMix, explicitNWC bool) RouteDecision {
	// 1. User explicitly chose an NWC-class connector, regardless of mix
	if explicitNWC {
		return RouteDecision{UseNWC: true, Reason: "user selected NWC connector"}
	}

	// 2. All recipients are Lightning addresses, no keysend targets
	if mix.NodeCount == 0 && mix.LNAddressCount > 0 {
		if caps.NWCConnected {
			return RouteDecision{UseNWC: true, Reason: "all recipients are Lightning addresses, NWC connected"}
		}
		if caps.WebLNAvailable {
			return RouteDecision{UseNWC: false, Reason: "all recipients are Lightning addresses, using WebLN"}
		}
	}

	// 3. WebLN present with keysend targets and no NWC preference
	if caps.WebLNAvailable && mix.NodeCount > 0 {
		return RouteDecision{UseNWC: false, Reason: "WebLN handles keysend targets"}
	}

	// 4. Cashu-class wallet over NWC: no native keysend
	if caps.NWCConnected && caps.IsCashuWallet {
		switch {
		case mix.NodeCount > 0 && mix.LNAddressCount > 0:
			if caps.BridgeAvailable {
				return RouteDecision{UseNWC: true, Reason: "Cashu wallet, bridge covers keysend targets in mixed batch"}
			}
			if caps.WebLNAvailable {
				return RouteDecision{UseNWC: false, Reason: "Cashu wallet without bridge, WebLN reaches keysend targets"}
			}
			return RouteDecision{UseNWC: true, Reason: "Cashu wallet, no viable method for keysend targets"}
		case mix.NodeCount > 0:
			if caps.BridgeAvailable {
				return RouteDecision{UseNWC: true, Reason: "Cashu wallet, keysend via bridge"}
			}
			if caps.WebLNAvailable {
				return RouteDecision{UseNWC: false, Reason: "Cashu wallet without bridge, keysend via WebLN"}
			}
			return RouteDecision{UseNWC: true, Reason: "Cashu wallet, no viable method for keysend targets"}
		default:
			return RouteDecision{UseNWC: true, Reason: "Cashu wallet pays Lightning addresses over NWC"}
		}
	}

	// 5. Non-Cashu NWC: keysend supported natively
	if caps.NWCConnected {
		return RouteDecision{UseNWC: true, Reason: "NWC connected, keysend supported natively"}
	}

	// 6. WebLN fallback
	if caps.WebLNAvailable {
		return RouteDecision{UseNWC: false, Reason: "falling back to WebLN"}
	}

	// 7. Nothing available; the payment attempt surfaces the failure
	return RouteDecision{UseNWC: false, Reason: "no wallet connected"}
}
