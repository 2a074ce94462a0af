package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecofinds/ecofinds-client/internal/catalog"
	"github.com/ecofinds/ecofinds-client/internal/session"
)

func run(ctx context.Context, a *app, command string, args []string) error {
	// Reconcile stored tokens with the backend before any authenticated
	// operation; browsing commands stay useful while logged out.
	if err := a.session.FetchCurrentUser(ctx); err != nil {
		// A torn-down session is not fatal for public commands.
		if _, ok := a.session.CurrentUser(); !ok && requiresAuth(command) {
			return err
		}
	}

	switch command {
	case "register":
		return cmdRegister(ctx, a, args)
	case "login":
		return cmdLogin(ctx, a, args)
	case "logout":
		a.session.Logout()
		a.cart.ClearClientSide()
		a.wishlist.ClearClientSide()
		return nil
	case "me":
		user, ok := a.session.CurrentUser()
		if !ok {
			return fmt.Errorf("not logged in")
		}
		return printJSON(user)
	case "profile":
		return cmdProfile(ctx, a, args)
	case "products":
		return cmdProducts(ctx, a, args)
	case "product":
		return cmdProduct(ctx, a, args)
	case "sell":
		return cmdSell(ctx, a, args)
	case "edit":
		return cmdEdit(ctx, a, args)
	case "delete":
		return cmdDelete(ctx, a, args)
	case "listings":
		products, err := a.catalog.MyListings(ctx)
		if err != nil {
			return err
		}
		return printJSON(products)
	case "cart":
		if err := a.cart.FetchCart(ctx); err != nil {
			return err
		}
		return printJSON(map[string]any{
			"items": a.cart.Items(),
			"total": a.cart.CartTotal(),
			"count": a.cart.CartCount(),
		})
	case "cart-add":
		return cmdCartAdd(ctx, a, args)
	case "cart-rm":
		return cmdCartRemove(ctx, a, args)
	case "cart-qty":
		return cmdCartQuantity(ctx, a, args)
	case "checkout":
		if err := a.cart.FetchCart(ctx); err != nil {
			return err
		}
		receipt, err := a.cart.Checkout(ctx)
		if err != nil {
			return err
		}
		return printJSON(receipt)
	case "purchases":
		if err := a.cart.FetchPurchaseHistory(ctx); err != nil {
			return err
		}
		return printJSON(a.cart.PurchaseHistory())
	case "wishlist":
		if err := a.wishlist.Fetch(ctx); err != nil {
			return err
		}
		return printJSON(a.wishlist.Products())
	case "wish":
		return cmdWish(ctx, a, args, a.wishlist.Add)
	case "unwish":
		return cmdWish(ctx, a, args, a.wishlist.Remove)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func requiresAuth(command string) bool {
	switch command {
	case "register", "login", "logout", "products", "product":
		return false
	}
	return true
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	username := fs.String("username", "", "display name")
	password := fs.String("password", "", "password (min 6 characters)")
	image := fs.String("image", "", "profile image URL (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *username == "" || *password == "" {
		return fmt.Errorf("--email, --username and --password are required")
	}
	return a.session.Register(ctx, *email, *username, *password, *image)
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("--email and --password are required")
	}
	return a.session.Login(ctx, *email, *password)
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	username := fs.String("username", "", "new display name")
	image := fs.String("image", "", "new profile image URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var update session.ProfileUpdate
	if *username != "" {
		update.Username = username
	}
	if *image != "" {
		update.ProfileImage = image
	}
	if update.Username == nil && update.ProfileImage == nil {
		return fmt.Errorf("nothing to update")
	}
	return a.session.UpdateProfile(ctx, update)
}

func cmdProducts(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	category := fs.String("category", "", "category filter")
	query := fs.String("q", "", "search text")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 8, "items per page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result, err := a.catalog.ListProducts(ctx, catalog.ListParams{
		Category: *category,
		Query:    *query,
		Page:     *page,
		PerPage:  *perPage,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdProduct(ctx context.Context, a *app, args []string) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}
	product, err := a.catalog.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(product)
}

func cmdSell(ctx context.Context, a *app, args []string) error {
	form, _, err := parseProductForm("sell", args)
	if err != nil {
		return err
	}
	product, err := a.catalog.CreateProduct(ctx, *form)
	if err != nil {
		return err
	}
	return printJSON(product)
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	form, rest, err := parseProductForm("edit", args)
	if err != nil {
		return err
	}
	id, err := idArg(rest)
	if err != nil {
		return err
	}
	product, err := a.catalog.UpdateProduct(ctx, id, *form)
	if err != nil {
		return err
	}
	return printJSON(product)
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}
	return a.catalog.DeleteProduct(ctx, id)
}

func cmdCartAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("cart-add", flag.ContinueOnError)
	qty := fs.Int("qty", 1, "quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := idArg(fs.Args())
	if err != nil {
		return err
	}
	product, err := a.catalog.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := a.cart.AddToCart(ctx, *product, *qty); err != nil {
		return err
	}
	return printJSON(a.cart.Items())
}

func cmdCartRemove(ctx context.Context, a *app, args []string) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}
	if err := a.cart.FetchCart(ctx); err != nil {
		return err
	}
	if err := a.cart.RemoveFromCart(ctx, id); err != nil {
		return err
	}
	return printJSON(a.cart.Items())
}

func cmdCartQuantity(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("cart-qty", flag.ContinueOnError)
	qty := fs.Int("qty", 1, "new quantity; below 1 removes the item")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := idArg(fs.Args())
	if err != nil {
		return err
	}
	if err := a.cart.FetchCart(ctx); err != nil {
		return err
	}
	if err := a.cart.UpdateQuantity(ctx, id, *qty); err != nil {
		return err
	}
	return printJSON(a.cart.Items())
}

func cmdWish(ctx context.Context, a *app, args []string, op func(context.Context, int) error) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}
	if err := a.wishlist.Fetch(ctx); err != nil {
		return err
	}
	if err := op(ctx, id); err != nil {
		return err
	}
	return printJSON(a.wishlist.Products())
}

func parseProductForm(name string, args []string) (*catalog.ProductForm, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	title := fs.String("title", "", "product title")
	description := fs.String("description", "", "product description")
	category := fs.String("category", "", "product category")
	price := fs.Float64("price", 0, "price")
	images := fs.String("images", "", "comma-separated image file paths")
	keep := fs.String("keep-images", "", "comma-separated image URLs to keep (edit only)")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	form := &catalog.ProductForm{
		Title:       *title,
		Description: *description,
		Category:    *category,
		Price:       *price,
	}
	if *images != "" {
		for _, path := range strings.Split(*images, ",") {
			path = strings.TrimSpace(path)
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("read image %s: %w", path, err)
			}
			form.Images = append(form.Images, catalog.ImageFile{
				Name:    filepath.Base(path),
				Content: content,
			})
		}
	}
	if *keep != "" {
		form.ExistingImages = strings.Split(*keep, ",")
	}
	return form, fs.Args(), nil
}

func idArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("a product id argument is required")
	}
	var id int
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil || id < 1 {
		return 0, fmt.Errorf("invalid product id %q", args[0])
	}
	return id, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
