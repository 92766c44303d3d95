package bot

import (
	"fmt"
	"strings"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/checkout"
	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/render"
)

// User-facing texts.
const (
	textWelcome = "👋 Bienvenue dans ma boutique !\n\n" +
		"• 🛍️ Utilise les boutons ci-dessous\n" +
		"• ou /shop pour la version bot"
	textHelp = "Commandes utiles :\n" +
		"/start — menu principal\n" +
		"/shop — liste des produits\n" +
		"/cart — voir le panier\n" +
		"/restart — annuler la commande en cours"
	textCatalog          = "Produits disponibles\nSélectionnez un article pour voir les détails."
	textEmptyCatalog     = "Aucun produit disponible pour le moment."
	textCartEmpty        = "🧺 Panier vide."
	textCartCleared      = "🧺 Panier vidé."
	textNotFound         = "❌ Produit introuvable."
	textChooseVariant    = "Choisis une taille"
	textAdded            = "Ajouté au panier ✅"
	textInvalidVariant   = "Taille invalide"
	textCheckoutEmpty    = "Votre panier est vide."
	textCheckoutActive   = "Une commande est déjà en cours. Répondez à la question ou /restart."
	textStale            = "Cette action n'est plus disponible."
	textUnknownAction    = "Action inconnue."
	textAskName          = "📝 Commande — Étape 1/3\n\nQuel est votre nom complet ?"
	textAskAddress       = "📍 Étape 2/3\nIndiquez votre adresse de livraison :"
	textAskPhone         = "📞 Étape 3/3\nVotre numéro de téléphone :"
	textEmptyAnswer      = "⚠️ Merci de saisir une réponse."
	textCancelled        = "❌ Commande annulée."
	textCompleted        = "✅ Merci ! Votre commande a été enregistrée. Nous vous contacterons pour le paiement et la livraison."
	textEmbeddedDone     = "✅ Merci ! Votre commande (WebApp) a été enregistrée."
	textEmbeddedRepeat   = "✅ Cette commande a déjà été enregistrée."
	textUnsupported      = "Type de donnée non supporté."
	textSubmissionFailed = "❌ Erreur lors du traitement de la commande."
	textNotRecorded      = "❌ La commande n'a pas pu être enregistrée. Veuillez réessayer."
	textUnknownCommand   = "Commande inconnue. Tapez /help pour la liste des commandes."
	textRestarted        = "🔄 Commande en cours annulée."
	labelShop            = "🛍️ Voir les produits"
	labelBack            = "⬅️ Retour boutique"
	labelAdd             = "➕ Ajouter au panier"
	labelCheckout        = "✅ Passer commande"
	labelClear           = "🧹 Vider"
	labelConfirm         = "✅ Confirmer"
	labelCancel          = "❌ Annuler"
	labelOpenApp         = "🧾 Ouvrir la boutique"
)

func cartLabel(count int) string {
	if count > 0 {
		return fmt.Sprintf("🧺 Panier (%d)", count)
	}
	return "🧺 Panier"
}

func button(label string, a action.Action) render.Button {
	return render.Button{Label: label, Action: a}
}

func mainMenu(count int) [][]render.Button {
	return [][]render.Button{
		render.Row(button(labelShop, action.Shop())),
		render.Row(button(cartLabel(count), action.ViewCart())),
	}
}

func backMenu(count int) [][]render.Button {
	return [][]render.Button{
		render.Row(button(labelBack, action.Shop()), button(cartLabel(count), action.ViewCart())),
	}
}

func welcomeView(count int, webAppURL string) render.View {
	v := render.View{Body: textWelcome, Actions: mainMenu(count)}
	if webAppURL != "" {
		v.AppButton = &render.AppButton{Label: labelOpenApp, URL: webAppURL}
	}
	return v
}

func helpView() render.View {
	return render.View{Body: textHelp}
}

func noticeView(text string, count int) render.View {
	return render.View{Body: text, Actions: backMenu(count)}
}

func catalogView(products []domain.Product, count int) render.View {
	if len(products) == 0 {
		return render.View{Body: textEmptyCatalog, Actions: [][]render.Button{render.Row(button(cartLabel(count), action.ViewCart()))}}
	}
	rows := make([][]render.Button, 0, len(products)+1)
	for _, p := range products {
		label := p.Name + " — " + domain.FormatPrice(p.Price)
		rows = append(rows, render.Row(button(label, action.ViewProduct(p.ID))))
	}
	rows = append(rows, render.Row(button(cartLabel(count), action.ViewCart())))
	return render.View{Body: textCatalog, Actions: rows}
}

func productBody(p domain.Product) string {
	lines := []string{p.Name, domain.FormatPrice(p.Price)}
	if p.Description != "" {
		lines = append(lines, "", p.Description)
	}
	return strings.Join(lines, "\n")
}

func productView(p domain.Product, count int) render.View {
	return render.View{
		Body:  productBody(p),
		Media: p.Image,
		Actions: [][]render.Button{
			render.Row(button(labelAdd, action.AddToCart(p.ID))),
			render.Row(button(labelBack, action.Shop()), button(cartLabel(count), action.ViewCart())),
		},
	}
}

// variantView keeps the product body and media so it replaces the product
// detail in place.
func variantView(p domain.Product) render.View {
	rows := make([][]render.Button, 0, len(p.Variants)+1)
	for _, v := range p.Variants {
		rows = append(rows, render.Row(button(v, action.ChooseVariant(p.ID, v))))
	}
	rows = append(rows, render.Row(button("⬅️ Retour", action.ViewProduct(p.ID))))
	return render.View{Body: productBody(p), Media: p.Image, Actions: rows}
}

func itemLines(items []domain.CartItem) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("• %s x%d — %s", it.DisplayName(), it.Quantity, domain.FormatPrice(it.Subtotal())))
	}
	return lines
}

func cartView(items []domain.CartItem) render.View {
	if len(items) == 0 {
		return render.View{Body: textCartEmpty, Actions: [][]render.Button{render.Row(button(labelBack, action.Shop()))}}
	}
	rows := make([][]render.Button, 0, len(items)+2)
	for _, it := range items {
		rows = append(rows, render.Row(button("🗑️ Retirer "+it.DisplayName(), action.RemoveFromCart(it.Key))))
	}
	rows = append(rows,
		render.Row(button(labelCheckout, action.BeginCheckout()), button(labelClear, action.ClearCart())),
		render.Row(button(labelBack, action.Shop())),
	)
	body := "🧺 Votre panier\n\n" + strings.Join(itemLines(items), "\n") +
		"\n\nTotal : " + domain.FormatPrice(domain.SumItems(items))
	return render.View{Body: body, Actions: rows}
}

func promptView(state checkout.State) render.View {
	switch state {
	case checkout.AskName:
		return render.View{Body: textAskName}
	case checkout.AskAddress:
		return render.View{Body: textAskAddress}
	case checkout.AskPhone:
		return render.View{Body: textAskPhone}
	default:
		return render.View{Body: textStale}
	}
}

func recapView(d *checkout.Draft) render.View {
	lines := []string{
		"🧾 Récapitulatif commande",
		"👤 " + d.Contact.Name,
		"🏠 " + d.Contact.Address,
		"📞 " + d.Contact.Phone,
		"",
	}
	lines = append(lines, itemLines(d.Items)...)
	lines = append(lines, "", "Total : "+domain.FormatPrice(d.Total()), "", "Confirmez-vous la commande ?")
	return render.View{
		Body: strings.Join(lines, "\n"),
		Actions: [][]render.Button{
			render.Row(button(labelConfirm, action.Confirm()), button(labelCancel, action.Cancel())),
		},
	}
}
