// Package action defines the typed button actions and their wire tokens.
//
// Tokens are what the chat transport attaches to buttons. They are parsed once
// at the transport boundary; everything past it works with Action values.
package action

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates Action values.
type Kind int

const (
	KindNone Kind = iota
	KindShop
	KindViewCart
	KindClearCart
	KindViewProduct
	KindAddToCart
	KindChooseVariant
	KindRemoveFromCart
	KindBeginCheckout
	KindConfirm
	KindCancel
)

var kindNames = map[Kind]string{
	KindNone:           "none",
	KindShop:           "shop",
	KindViewCart:       "view_cart",
	KindClearCart:      "clear_cart",
	KindViewProduct:    "view_product",
	KindAddToCart:      "add_to_cart",
	KindChooseVariant:  "choose_variant",
	KindRemoveFromCart: "remove_from_cart",
	KindBeginCheckout:  "begin_checkout",
	KindConfirm:        "confirm",
	KindCancel:         "cancel",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is a decoded button press. ProductID, Variant and Key are set only for
// the kinds that carry them.
type Action struct {
	Kind      Kind
	ProductID string
	Variant   string
	Key       string
}

// Shop opens the catalog.
func Shop() Action { return Action{Kind: KindShop} }

// ViewCart shows the cart.
func ViewCart() Action { return Action{Kind: KindViewCart} }

// ClearCart empties the cart.
func ClearCart() Action { return Action{Kind: KindClearCart} }

// ViewProduct shows one product.
func ViewProduct(id string) Action { return Action{Kind: KindViewProduct, ProductID: id} }

// AddToCart adds one unit of a product, asking for a variant first when it has any.
func AddToCart(id string) Action { return Action{Kind: KindAddToCart, ProductID: id} }

// ChooseVariant adds one unit of a product in the given variant.
func ChooseVariant(id, variant string) Action {
	return Action{Kind: KindChooseVariant, ProductID: id, Variant: variant}
}

// RemoveFromCart drops the cart line with the given item key.
func RemoveFromCart(key string) Action { return Action{Kind: KindRemoveFromCart, Key: key} }

// BeginCheckout starts the checkout dialogue.
func BeginCheckout() Action { return Action{Kind: KindBeginCheckout} }

// Confirm places the order shown in the recap.
func Confirm() Action { return Action{Kind: KindConfirm} }

// Cancel abandons the checkout dialogue.
func Cancel() Action { return Action{Kind: KindCancel} }

// Wire prefixes. Telegram limits callback data to 64 bytes, so they stay short.
const (
	tokShop     = "shop"
	tokCart     = "cart"
	tokClear    = "clearcart"
	tokCheckout = "checkout"
	tokConfirm  = "confirm_order"
	tokCancel   = "cancel_order"
	tokProduct  = "prod:"
	tokAdd      = "add:"
	tokChoose   = "choose:"
	tokRemove   = "rm:"
)

// MaxTokenLen is the largest token the chat transport accepts.
const MaxTokenLen = 64

// IDSeparator may not appear in product ids; it delimits id and variant in
// choose tokens.
const IDSeparator = ":"

// ErrTokenTooLong is returned by Check for actions whose token exceeds MaxTokenLen.
var ErrTokenTooLong = errors.New("action token too long")

// ErrUnknownToken is returned by Parse for tokens it cannot decode.
var ErrUnknownToken = errors.New("unknown action token")

// Token encodes the action for the wire.
func (a Action) Token() string {
	switch a.Kind {
	case KindShop:
		return tokShop
	case KindViewCart:
		return tokCart
	case KindClearCart:
		return tokClear
	case KindBeginCheckout:
		return tokCheckout
	case KindConfirm:
		return tokConfirm
	case KindCancel:
		return tokCancel
	case KindViewProduct:
		return tokProduct + a.ProductID
	case KindAddToCart:
		return tokAdd + a.ProductID
	case KindChooseVariant:
		return tokChoose + a.ProductID + IDSeparator + a.Variant
	case KindRemoveFromCart:
		return tokRemove + a.Key
	default:
		return ""
	}
}

// Parse decodes a wire token.
func Parse(token string) (Action, error) {
	switch token {
	case tokShop:
		return Shop(), nil
	case tokCart:
		return ViewCart(), nil
	case tokClear:
		return ClearCart(), nil
	case tokCheckout:
		return BeginCheckout(), nil
	case tokConfirm:
		return Confirm(), nil
	case tokCancel:
		return Cancel(), nil
	}

	switch {
	case strings.HasPrefix(token, tokProduct):
		if id := strings.TrimPrefix(token, tokProduct); id != "" {
			return ViewProduct(id), nil
		}
	case strings.HasPrefix(token, tokAdd):
		if id := strings.TrimPrefix(token, tokAdd); id != "" {
			return AddToCart(id), nil
		}
	case strings.HasPrefix(token, tokChoose):
		// Product ids never contain IDSeparator (the catalog rejects them); variants may.
		id, variant, ok := strings.Cut(strings.TrimPrefix(token, tokChoose), IDSeparator)
		if ok && id != "" && variant != "" {
			return ChooseVariant(id, variant), nil
		}
	case strings.HasPrefix(token, tokRemove):
		if key := strings.TrimPrefix(token, tokRemove); key != "" {
			return RemoveFromCart(key), nil
		}
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownToken, token)
}

// Check reports whether a's token fits on a button.
func (a Action) Check() error {
	if tok := a.Token(); len(tok) > MaxTokenLen {
		return fmt.Errorf("%w: %s is %d bytes, max %d", ErrTokenTooLong, a.Kind, len(tok), MaxTokenLen)
	}
	return nil
}
