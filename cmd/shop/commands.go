package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/guard"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

// lowStockThreshold marks products the dashboard calls out as running low.
const lowStockThreshold = 5

type runner struct {
	deps deps
	shop *shop
}

func newApp(d deps) *cli.App {
	r := &runner{deps: d}
	return &cli.App{
		Name:   "shop",
		Usage:  "browse the store, fill a cart and check out over chat",
		Writer: d.Out,
		Before: r.open,
		After:  r.close,
		Action: r.home,
		Commands: []*cli.Command{
			{
				Name:  "products",
				Usage: "browse the catalog",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "list every product", Action: r.productsList},
					{Name: "show", Usage: "show one product", ArgsUsage: "ID", Action: r.productsShow},
				},
			},
			{
				Name:  "cart",
				Usage: "manage the cart",
				Subcommands: []*cli.Command{
					{Name: "show", Usage: "list cart lines and the subtotal", Action: r.cartShow},
					{
						Name:      "add",
						Usage:     "add a product to the cart",
						ArgsUsage: "PRODUCT_ID",
						Flags:     []cli.Flag{&cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Value: 1, Usage: "quantity to add"}},
						Action:    r.cartAdd,
					},
					{Name: "update", Usage: "set the quantity of a cart line", ArgsUsage: "PRODUCT_ID QUANTITY", Action: r.cartUpdate},
					{Name: "remove", Usage: "drop a cart line", ArgsUsage: "PRODUCT_ID", Action: r.cartRemove},
					{Name: "clear", Usage: "empty the cart", Action: r.cartClear},
					{Name: "status", Usage: "show local persistence health", Action: r.cartStatus},
				},
			},
			{
				Name:  "checkout",
				Usage: "build the chat order message and link",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "buyer name"},
					&cli.StringFlag{Name: "phone", Usage: "10-digit phone number"},
					&cli.StringFlag{Name: "address", Usage: "delivery address"},
					&cli.StringFlag{Name: "qr", Usage: "write the link as a PNG QR code to this file"},
					&cli.BoolFlag{Name: "clear", Usage: "empty the cart once the link is printed"},
				},
				Action: r.checkout,
			},
			{
				Name:  "wishlist",
				Usage: "manage saved products",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "list saved products", Action: r.wishlistList},
					{Name: "add", Usage: "save a product", ArgsUsage: "PRODUCT_ID", Action: r.wishlistAdd},
					{Name: "remove", Usage: "forget a saved product", ArgsUsage: "PRODUCT_ID", Action: r.wishlistRemove},
				},
			},
			{
				Name:  "account",
				Usage: "sign up, sign in and out",
				Subcommands: []*cli.Command{
					{Name: "signup", Usage: "create an account", Flags: credentialFlags(), Action: r.accountSignup},
					{Name: "login", Usage: "sign in", Flags: credentialFlags(), Action: r.accountLogin},
					{Name: "logout", Usage: "sign out", Action: r.accountLogout},
					{Name: "whoami", Usage: "show the current identity and role", Action: r.accountWhoami},
				},
			},
			{
				Name:  "admin",
				Usage: "store management",
				Subcommands: []*cli.Command{
					{Name: "dashboard", Usage: "catalog overview", Action: r.adminDashboard},
					{
						Name:  "products",
						Usage: "create and edit products",
						Subcommands: []*cli.Command{
							{Name: "create", Usage: "add a product", Flags: productFlags(), Action: r.adminProductCreate},
							{Name: "update", Usage: "edit a product", ArgsUsage: "PRODUCT_ID", Flags: productFlags(), Action: r.adminProductUpdate},
						},
					},
				},
			},
		},
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Required: true},
		&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"STOREFRONT_PASSWORD"}},
	}
}

func productFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "price"},
		&cli.IntFlag{Name: "stock"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "image"},
	}
}

func (r *runner) open(c *cli.Context) error {
	if r.shop != nil {
		return nil
	}
	s, err := openShop(c.Context, r.deps)
	if err != nil {
		return err
	}
	r.shop = s
	return nil
}

func (r *runner) close(*cli.Context) error {
	err := r.shop.Close()
	r.shop = nil
	return err
}

// home is the storefront landing: the catalog, or the dashboard for admins.
func (r *runner) home(c *cli.Context) error {
	_, decision, err := r.shop.decide(c.Context, guard.PathHome)
	if err != nil {
		return err
	}
	if decision.Outcome == guard.OutcomeRedirect && decision.Target == guard.PathAdminDashboard {
		return r.adminDashboard(c)
	}
	return r.productsList(c)
}

func (r *runner) productsList(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathProducts); err != nil {
		return err
	}
	products, err := r.shop.api.ListProducts(c.Context)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		r.shop.printf("no products yet\n")
		return nil
	}
	return r.productTable(products)
}

func (r *runner) productTable(products []types.Product) error {
	w := tabwriter.NewWriter(r.shop.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		stock := strconv.Itoa(p.Stock)
		if !p.InStock() {
			stock = "out of stock"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s%s\t%s\n", p.ID, p.Name, r.shop.cfg.Checkout.Currency, p.Price.StringFixed(2), stock)
	}
	return w.Flush()
}

func (r *runner) productsShow(c *cli.Context) error {
	id, err := productIDArg(c, 0)
	if err != nil {
		return err
	}
	if _, err := r.shop.gate(c.Context, productDestination(id)); err != nil {
		return err
	}
	p, err := r.shop.api.GetProduct(c.Context, id)
	if err != nil {
		return err
	}
	r.shop.printf("%s (#%d)\n", p.Name, p.ID)
	r.shop.printf("price: %s%s\n", r.shop.cfg.Checkout.Currency, p.Price.StringFixed(2))
	if p.InStock() {
		r.shop.printf("stock: %d\n", p.Stock)
	} else {
		r.shop.printf("stock: out of stock\n")
	}
	if p.Description != "" {
		r.shop.printf("\n%s\n", p.Description)
	}
	return nil
}

func (r *runner) cartShow(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathCart); err != nil {
		return err
	}
	items := r.shop.cart.Items()
	if len(items) == 0 {
		r.shop.printf("your cart is empty\n")
		return nil
	}
	currency := r.shop.cfg.Checkout.Currency
	w := tabwriter.NewWriter(r.shop.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tQTY\tLINE TOTAL")
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s%s\n", item.ID, item.Name, item.Quantity, item.Ceiling(), currency, item.LineTotal().StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	r.shop.printf("%d items, subtotal %s%s\n", r.shop.cart.Count(), currency, r.shop.cart.Subtotal().StringFixed(2))
	return nil
}

func (r *runner) cartAdd(c *cli.Context) error {
	id, err := productIDArg(c, 0)
	if err != nil {
		return err
	}
	if _, err := r.shop.gate(c.Context, guard.PathCart); err != nil {
		return err
	}
	product, err := r.shop.api.GetProduct(c.Context, id)
	if err != nil {
		return err
	}
	if !product.InStock() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is out of stock", product.Name))
	}
	line, err := r.shop.cart.Add(c.Context, cart.ItemFromProduct(product), c.Int("qty"))
	if err != nil {
		return err
	}
	r.shop.printf("%s x%d in cart\n", line.Name, line.Quantity)
	return nil
}

func (r *runner) cartUpdate(c *cli.Context) error {
	id, err := productIDArg(c, 0)
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(strings.TrimSpace(c.Args().Get(1)))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a whole number")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]string{"quantity": fmt.Sprintf("use `shop cart remove %d` to drop the line", id)})
	}
	if _, err := r.shop.gate(c.Context, guard.PathCart); err != nil {
		return err
	}
	line, ok := r.shop.cart.UpdateQuantity(c.Context, strconv.FormatInt(id, 10), qty)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d is not in the cart", id))
	}
	if line.Quantity != qty {
		r.shop.printf("only %d available\n", line.Quantity)
	}
	r.shop.printf("%s x%d in cart\n", line.Name, line.Quantity)
	return nil
}

func (r *runner) cartRemove(c *cli.Context) error {
	id, err := productIDArg(c, 0)
	if err != nil {
		return err
	}
	if _, err := r.shop.gate(c.Context, guard.PathCart); err != nil {
		return err
	}
	if !r.shop.cart.Remove(c.Context, strconv.FormatInt(id, 10)) {
		r.shop.printf("product %d was not in the cart\n", id)
		return nil
	}
	r.shop.printf("removed product %d\n", id)
	return nil
}

func (r *runner) cartClear(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathCart); err != nil {
		return err
	}
	r.shop.cart.Clear(c.Context)
	r.shop.printf("cart cleared\n")
	return nil
}

func (r *runner) cartStatus(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathCart); err != nil {
		return err
	}
	st := r.shop.cart.Status()
	health := "healthy"
	if !st.Enabled {
		health = "disabled"
	} else if !st.Healthy {
		health = "degraded"
	}
	r.shop.printf("persistence: %s\n", health)
	r.shop.printf("failures: %d\n", st.Failures)
	if st.LastError != "" {
		r.shop.printf("last failure: %s (%s)\n", st.LastError, st.LastOp)
	}
	if st.DroppedOnLoad > 0 {
		r.shop.printf("entries dropped on load: %d\n", st.DroppedOnLoad)
	}
	return nil
}

func (r *runner) checkout(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathCheckout); err != nil {
		return err
	}
	order, err := r.shop.checkout.Prepare(c.Context, r.shop.cart.Items(), checkout.Buyer{
		Name:    c.String("name"),
		Phone:   c.String("phone"),
		Address: c.String("address"),
	})
	if err != nil {
		return err
	}

	r.shop.printf("%s\n\n", order.Message)
	r.shop.printf("send your order: %s\n", order.Link)

	if path := strings.TrimSpace(c.String("qr")); path != "" {
		png, err := r.shop.checkout.QRCode(order)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write qr code")
		}
		r.shop.printf("qr code written to %s\n", path)
	}
	if c.Bool("clear") {
		r.shop.cart.Clear(c.Context)
	}
	return nil
}

func (r *runner) wishlistList(c *cli.Context) error {
	state, err := r.shop.gate(c.Context, guard.PathWishlist)
	if err != nil {
		return err
	}
	rows := r.shop.wishlist.Fetch(c.Context, state.UserID)
	if last := r.shop.wishlist.LastRequest(); last.Err != "" {
		return pkgerrors.New(pkgerrors.CodeDependency, last.Err)
	}
	if len(rows) == 0 {
		r.shop.printf("your wishlist is empty\n")
		return nil
	}
	for _, row := range rows {
		r.shop.printf("product %d (saved %s)\n", row.ProductID, row.CreatedAt.Local().Format("2006-01-02"))
	}
	return nil
}

func (r *runner) wishlistAdd(c *cli.Context) error {
	id, err := productIDArg(c, 0)
	if err != nil {
		return err
	}
	state, err := r.shop.gate(c.Context, guard.PathWishlist)
	if err != nil {
		return err
	}
	r.shop.wishlist.Fetch(c.Context, state.UserID)
	if r.shop.wishlist.Contains(id) {
		r.shop.printf("product %d is already on your wishlist\n", id)
		return nil
	}
	if _, err := r.shop.wishlist.Add(c.Context, state.UserID, id); err != nil {
		return err
	}
	r.shop.printf("saved product %d\n", id)
	return nil
}

func (r *runner) wishlistRemove(c *cli.Context) error {
	id, err := productIDArg(c, 0)
	if err != nil {
		return err
	}
	state, err := r.shop.gate(c.Context, guard.PathWishlist)
	if err != nil {
		return err
	}
	r.shop.wishlist.Fetch(c.Context, state.UserID)
	if !r.shop.wishlist.Contains(id) {
		r.shop.printf("product %d is not on your wishlist\n", id)
		return nil
	}
	if err := r.shop.wishlist.Remove(c.Context, state.UserID, id); err != nil {
		return err
	}
	r.shop.printf("removed product %d\n", id)
	return nil
}

func (r *runner) accountSignup(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathSignup); err != nil {
		return err
	}
	if res := r.shop.provider.SignUp(c.Context, c.String("email"), c.String("password")); !res.OK() {
		return pkgerrors.New(pkgerrors.CodeValidation, res.Error)
	}
	r.shop.printf("account created; check your inbox, then run `shop account login`\n")
	return nil
}

func (r *runner) accountLogin(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathLogin); err != nil {
		return err
	}
	if res := r.shop.provider.SignIn(c.Context, c.String("email"), c.String("password")); !res.OK() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, res.Error)
	}
	state, err := r.shop.provider.Await(c.Context)
	if err != nil {
		return err
	}
	r.shop.printf("signed in as %s (%s)\n", state.Email, state.Role)
	return nil
}

func (r *runner) accountLogout(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathAccount); err != nil {
		return err
	}
	if res := r.shop.provider.SignOut(c.Context); !res.OK() {
		return pkgerrors.New(pkgerrors.CodeDependency, res.Error)
	}
	r.shop.printf("signed out\n")
	return nil
}

// whoami is gated like the login screen, which every identity may open.
func (r *runner) accountWhoami(c *cli.Context) error {
	state, err := r.shop.gate(c.Context, guard.PathLogin)
	if err != nil {
		return err
	}
	if !state.SignedIn() {
		r.shop.printf("not signed in (%s)\n", state.Role)
		return nil
	}
	r.shop.printf("%s (%s)\n", state.Email, state.Role)
	return nil
}

func (r *runner) adminDashboard(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathAdminDashboard); err != nil {
		return err
	}
	products, err := r.shop.api.ListProducts(c.Context)
	if err != nil {
		return err
	}

	units := 0
	value := decimal.Zero
	var out, low []types.Product
	for _, p := range products {
		units += p.Stock
		value = value.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
		switch {
		case !p.InStock():
			out = append(out, p)
		case p.Stock <= lowStockThreshold:
			low = append(low, p)
		}
	}

	currency := r.shop.cfg.Checkout.Currency
	r.shop.printf("products: %d\n", len(products))
	r.shop.printf("units in stock: %d\n", units)
	r.shop.printf("stock value: %s%s\n", currency, value.StringFixed(2))
	if len(out) > 0 {
		r.shop.printf("\nout of stock:\n")
		for _, p := range out {
			r.shop.printf("  #%d %s\n", p.ID, p.Name)
		}
	}
	if len(low) > 0 {
		r.shop.printf("\nrunning low:\n")
		for _, p := range low {
			r.shop.printf("  #%d %s (%d left)\n", p.ID, p.Name, p.Stock)
		}
	}
	return nil
}

func (r *runner) adminProductCreate(c *cli.Context) error {
	if _, err := r.shop.gate(c.Context, guard.PathAdminProducts); err != nil {
		return err
	}
	input, err := productInput(c, types.ProductInput{})
	if err != nil {
		return err
	}
	product, err := r.shop.api.CreateProduct(c.Context, input)
	if err != nil {
		return err
	}
	r.shop.printf("created product %d (%s)\n", product.ID, product.Name)
	return nil
}

func (r *runner) adminProductUpdate(c *cli.Context) error {
	id, err := productIDArg(c, 0)
	if err != nil {
		return err
	}
	if _, err := r.shop.gate(c.Context, "/admin/products/"+strconv.FormatInt(id, 10)); err != nil {
		return err
	}
	current, err := r.shop.api.GetProduct(c.Context, id)
	if err != nil {
		return err
	}
	input, err := productInput(c, types.ProductInput{
		Name:        current.Name,
		Price:       current.Price,
		Stock:       current.Stock,
		Description: current.Description,
		Image:       current.Image,
	})
	if err != nil {
		return err
	}
	product, err := r.shop.api.UpdateProduct(c.Context, id, input)
	if err != nil {
		return err
	}
	r.shop.printf("updated product %d (%s)\n", product.ID, product.Name)
	return nil
}

// productInput overlays the flags that were set onto base.
func productInput(c *cli.Context, base types.ProductInput) (types.ProductInput, error) {
	if c.IsSet("name") {
		base.Name = c.String("name")
	}
	if c.IsSet("price") {
		price, err := decimal.NewFromString(strings.TrimSpace(c.String("price")))
		if err != nil {
			return base, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"price": "must be a number"})
		}
		base.Price = price
	}
	if c.IsSet("stock") {
		base.Stock = c.Int("stock")
	}
	if c.IsSet("description") {
		base.Description = c.String("description")
	}
	if c.IsSet("image") {
		base.Image = c.String("image")
	}
	return base, nil
}

func productIDArg(c *cli.Context, index int) (int64, error) {
	raw := strings.TrimSpace(c.Args().Get(index))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id must be a positive integer")
	}
	return id, nil
}

func productDestination(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

// describe renders err for the terminal, with per-field details when present.
func describe(err error) string {
	var b strings.Builder
	b.WriteString(pkgerrors.UserMessage(err))
	for _, e := range multierr.Errors(err) {
		typed := pkgerrors.As(e)
		if typed == nil {
			continue
		}
		details := fieldDetails(typed.Details())
		fields := make([]string, 0, len(details))
		for field := range details {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(&b, "\n  %s: %s", field, details[field])
		}
	}
	return b.String()
}

// fieldDetails accepts local validation details and the decoded form of remote ones.
func fieldDetails(raw any) map[string]string {
	switch details := raw.(type) {
	case map[string]string:
		return details
	case map[string]any:
		out := make(map[string]string, len(details))
		for field, msg := range details {
			out[field] = fmt.Sprint(msg)
		}
		return out
	default:
		return nil
	}
}
