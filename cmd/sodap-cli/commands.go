package main

import (
	"fmt"
	"strconv"
	"strings"

	"sodap/core/ops"
	"sodap/native/catalog"
	"sodap/native/store"
)

func (c *cli) usageError(msg string) int {
	fmt.Fprintf(c.stderr, "Error: %s\n", msg)
	return 1
}

func (c *cli) runOneArgQuery(name, method string, args []string) int {
	if len(args) != 1 {
		return c.usageError(fmt.Sprintf("%s takes exactly one argument", name))
	}
	return c.query(method, strings.TrimSpace(args[0]))
}

func (c *cli) runDerive(args []string) int {
	fs := c.flagSet("derive")
	kind := fs.String("kind", "", "store|profile|escrow|loyalty_mint|product|receipt|platform_admins")
	owner := fs.String("owner", "", "owner credential")
	storeAddr := fs.String("store", "", "store address")
	id := fs.String("uuid", "", "product uuid")
	buyer := fs.String("buyer", "", "buyer credential")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *kind == "" {
		return c.usageError("--kind is required")
	}
	req := map[string]string{"kind": *kind}
	for k, v := range map[string]string{"owner": *owner, "store": *storeAddr, "uuid": *id, "buyer": *buyer} {
		if v != "" {
			req[k] = v
		}
	}
	return c.query("sodap_deriveAddress", req)
}

func (c *cli) runTransfer(args []string) int {
	fs := c.flagSet("transfer")
	keyFile := fs.String("key", "", "encrypted key file")
	to := fs.String("to", "", "recipient credential")
	value := fs.String("amount", "", "amount to send")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	recipient, err := parseCred("to", *to)
	if err != nil {
		return c.fail(err)
	}
	amt, err := c.parseAmount("amount", *value)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyFile, &ops.Transfer{To: recipient, Amount: amt})
}

func (c *cli) runStoreCommand(args []string) int {
	if len(args) == 0 {
		return c.usageError("store requires a subcommand: register|update|add-admin|remove-admin|set-active|get")
	}
	fs := c.flagSet("store " + args[0])
	keyFile := fs.String("key", "", "encrypted key file")
	storeFlag := fs.String("store", "", "store address")
	var name, description, logo optionalString
	fs.Var(&name, "name", "store name")
	fs.Var(&description, "description", "store description")
	fs.Var(&logo, "logo", "logo URI")
	points := fs.Uint64("points-per-unit", 0, "loyalty points per unit of value")
	minPurchase := fs.String("min-purchase", "", "minimum purchase for loyalty rewards")
	reward := fs.Uint64("reward-percentage", 0, "loyalty reward percentage")
	loyaltyOn := fs.Bool("loyalty", false, "enable the loyalty configuration")
	admin := fs.String("admin", "", "admin credential")
	role := fs.String("role", "manager", "admin role: manager|viewer")
	active := fs.Bool("active", true, "store active flag")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	loyaltyCfg := func() (ops.LoyaltyConfig, error) {
		cfg := ops.LoyaltyConfig{PointsPerUnitValue: *points, RewardPercentage: *reward, Active: *loyaltyOn}
		if *minPurchase != "" {
			v, err := c.parseAmount("min-purchase", *minPurchase)
			if err != nil {
				return cfg, err
			}
			cfg.MinPurchase = v
		}
		return cfg, nil
	}

	if args[0] == "register" {
		if strings.TrimSpace(name.value) == "" {
			return c.usageError("--name is required")
		}
		cfg, err := loyaltyCfg()
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.RegisterStore{Name: name.value, Description: description.value, LogoURI: logo.value, Loyalty: cfg})
	}

	addr, err := parseStore(*storeFlag)
	if err != nil {
		return c.fail(err)
	}
	switch args[0] {
	case "get":
		return c.query("sodap_getStore", addr.Hex())
	case "update":
		p := &ops.UpdateStore{
			Store:          addr,
			SetName:        name.set,
			Name:           name.value,
			SetDescription: description.set,
			Description:    description.value,
			SetLogoURI:     logo.set,
			LogoURI:        logo.value,
		}
		if flagWasSet(fs, "loyalty", "points-per-unit", "min-purchase", "reward-percentage") {
			cfg, err := loyaltyCfg()
			if err != nil {
				return c.fail(err)
			}
			p.SetLoyalty = true
			p.Loyalty = cfg
		}
		return c.submit(*keyFile, p)
	case "add-admin":
		cred, err := parseCred("admin", *admin)
		if err != nil {
			return c.fail(err)
		}
		r, err := store.ParseRole(*role)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.AddStoreAdmin{Store: addr, Candidate: cred, Role: uint8(r)})
	case "remove-admin":
		cred, err := parseCred("admin", *admin)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.RemoveStoreAdmin{Store: addr, Target: cred})
	case "set-active":
		return c.submit(*keyFile, &ops.SetStoreActive{Store: addr, Active: *active})
	default:
		return c.usageError("unknown store subcommand " + args[0])
	}
}

func (c *cli) runProductCommand(args []string) int {
	if len(args) == 0 {
		return c.usageError("product requires a subcommand: register|update|deactivate|get|list")
	}
	fs := c.flagSet("product " + args[0])
	keyFile := fs.String("key", "", "encrypted key file")
	storeFlag := fs.String("store", "", "store address")
	id := fs.String("uuid", "", "product uuid")
	price := fs.String("price", "", "unit price")
	stock := fs.String("stock", "", "units in stock")
	tokenized := fs.String("tokenized", "none", "tokenized type: none|physical|token")
	var metadata optionalString
	fs.Var(&metadata, "metadata", "metadata URI")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	addr, err := parseStore(*storeFlag)
	if err != nil {
		return c.fail(err)
	}
	if args[0] == "list" {
		return c.query("sodap_listProducts", addr.Hex())
	}
	uuid, err := parseUUID(*id)
	if err != nil {
		return c.fail(err)
	}
	parseStock := func() (uint64, error) {
		v, err := strconv.ParseUint(strings.TrimSpace(*stock), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("--stock must be a non-negative integer")
		}
		return v, nil
	}

	switch args[0] {
	case "get":
		return c.query("sodap_getProduct", addr.Hex(), *id)
	case "register":
		p, err := c.parseAmount("price", *price)
		if err != nil {
			return c.fail(err)
		}
		s, err := parseStock()
		if err != nil {
			return c.fail(err)
		}
		tt, err := catalog.ParseTokenizedType(*tokenized)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.RegisterProduct{Store: addr, UUID: uuid, Price: p, Stock: s, TokenizedType: uint8(tt), MetadataURI: metadata.value})
	case "update":
		p := &ops.UpdateProduct{Store: addr, UUID: uuid, SetMetadataURI: metadata.set, MetadataURI: metadata.value}
		if *price != "" {
			v, err := c.parseAmount("price", *price)
			if err != nil {
				return c.fail(err)
			}
			p.SetPrice, p.Price = true, v
		}
		if *stock != "" {
			v, err := parseStock()
			if err != nil {
				return c.fail(err)
			}
			p.SetStock, p.Stock = true, v
		}
		if flagWasSet(fs, "tokenized") {
			tt, err := catalog.ParseTokenizedType(*tokenized)
			if err != nil {
				return c.fail(err)
			}
			p.SetTokenized, p.TokenizedType = true, uint8(tt)
		}
		return c.submit(*keyFile, p)
	case "deactivate":
		return c.submit(*keyFile, &ops.DeactivateProduct{Store: addr, UUID: uuid})
	default:
		return c.usageError("unknown product subcommand " + args[0])
	}
}

func (c *cli) runBuy(args []string) int {
	fs := c.flagSet("buy")
	keyFile := fs.String("key", "", "encrypted key file")
	storeFlag := fs.String("store", "", "store address")
	total := fs.String("total", "", "total amount paid; must equal the cart total")
	var items itemList
	fs.Var(&items, "item", "cart line as UUID=QTY (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := parseStore(*storeFlag)
	if err != nil {
		return c.fail(err)
	}
	if len(items.uuids) == 0 {
		return c.usageError("at least one --item is required")
	}
	paid, err := c.parseAmount("total", *total)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyFile, &ops.PurchaseCart{Store: addr, UUIDs: items.uuids, Quantities: items.quantities, TotalPaid: paid})
}

func (c *cli) runReceipt(args []string) int {
	fs := c.flagSet("receipt")
	storeFlag := fs.String("store", "", "store address")
	buyer := fs.String("buyer", "", "buyer credential")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := parseStore(*storeFlag)
	if err != nil {
		return c.fail(err)
	}
	if _, err := parseCred("buyer", *buyer); err != nil {
		return c.fail(err)
	}
	return c.query("sodap_getReceipt", addr.Hex(), *buyer)
}

func (c *cli) runEscrowCommand(args []string) int {
	if len(args) == 0 {
		return c.usageError("escrow requires a subcommand: get|release|refund")
	}
	fs := c.flagSet("escrow " + args[0])
	keyFile := fs.String("key", "", "encrypted key file")
	storeFlag := fs.String("store", "", "store address")
	buyer := fs.String("buyer", "", "refund recipient credential")
	value := fs.String("amount", "", "amount")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	addr, err := parseStore(*storeFlag)
	if err != nil {
		return c.fail(err)
	}
	switch args[0] {
	case "get":
		return c.query("sodap_getEscrow", addr.Hex())
	case "release":
		amt, err := c.parseAmount("amount", *value)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.ReleaseEscrow{Store: addr, Amount: amt})
	case "refund":
		cred, err := parseCred("buyer", *buyer)
		if err != nil {
			return c.fail(err)
		}
		amt, err := c.parseAmount("amount", *value)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.RefundEscrow{Store: addr, Buyer: cred, Amount: amt})
	default:
		return c.usageError("unknown escrow subcommand " + args[0])
	}
}

func (c *cli) runLoyaltyCommand(args []string) int {
	if len(args) == 0 {
		return c.usageError("loyalty requires a subcommand: init|mint|redeem|points|get")
	}
	fs := c.flagSet("loyalty " + args[0])
	keyFile := fs.String("key", "", "encrypted key file")
	storeFlag := fs.String("store", "", "store address")
	points := fs.Uint64("points", 0, "points per unit of value (init) or points to redeem")
	rate := fs.Uint64("redemption-rate", 0, "points per unit of value on redemption")
	authority := fs.String("authority", "", "mint authority credential")
	buyer := fs.String("buyer", "", "buyer or holder credential")
	purchase := fs.String("purchase-amount", "", "purchase amount to reward")
	forValue := fs.Bool("for-value", false, "redeem points for token value")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	addr, err := parseStore(*storeFlag)
	if err != nil {
		return c.fail(err)
	}
	switch args[0] {
	case "get":
		return c.query("sodap_getLoyaltyMint", addr.Hex())
	case "points":
		if _, err := parseCred("buyer", *buyer); err != nil {
			return c.fail(err)
		}
		return c.query("sodap_getPoints", addr.Hex(), *buyer)
	case "init":
		cred, err := parseCred("authority", *authority)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.InitializeLoyalty{Store: addr, PointsPerUnitValue: *points, RedemptionRate: *rate, Authority: cred})
	case "mint":
		cred, err := parseCred("buyer", *buyer)
		if err != nil {
			return c.fail(err)
		}
		amt, err := c.parseAmount("purchase-amount", *purchase)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keyFile, &ops.MintLoyalty{Store: addr, Buyer: cred, PurchaseAmount: amt})
	case "redeem":
		if *points == 0 {
			return c.usageError("--points must be positive")
		}
		return c.submit(*keyFile, &ops.RedeemLoyalty{Store: addr, Points: *points, ForValue: *forValue})
	default:
		return c.usageError("unknown loyalty subcommand " + args[0])
	}
}

func (c *cli) runAdminCommand(args []string) int {
	if len(args) == 0 {
		return c.usageError("admin requires a subcommand: add|remove|pause|list")
	}
	fs := c.flagSet("admin " + args[0])
	keyFile := fs.String("key", "", "encrypted key file")
	target := fs.String("admin", "", "admin credential")
	name := fs.String("name", "", "admin display name")
	secretEnv := fs.String("secret-env", "SODAP_ROOT_SECRET", "environment variable holding the root secret")
	module := fs.String("module", "", "module to pause or resume")
	paused := fs.Bool("paused", true, "pause (true) or resume (false)")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	switch args[0] {
	case "list":
		return c.query("sodap_getPlatformAdmins")
	case "paused":
		return c.query("sodap_getPausedModules")
	case "add", "remove":
		cred, err := parseCred("admin", *target)
		if err != nil {
			return c.fail(err)
		}
		secret := envOr(*secretEnv, "")
		if secret == "" {
			return c.usageError(*secretEnv + " must hold the root secret")
		}
		if args[0] == "add" {
			return c.submit(*keyFile, &ops.AddPlatformAdmin{Candidate: cred, Name: *name, RootSecret: secret})
		}
		return c.submit(*keyFile, &ops.RemovePlatformAdmin{Target: cred, RootSecret: secret})
	case "pause":
		if strings.TrimSpace(*module) == "" {
			return c.usageError("--module is required")
		}
		return c.submit(*keyFile, &ops.SetModulePaused{Module: *module, Paused: *paused})
	default:
		return c.usageError("unknown admin subcommand " + args[0])
	}
}

func (c *cli) runProfileCommand(args []string) int {
	if len(args) == 0 {
		return c.usageError("profile requires a subcommand: create|update|get")
	}
	fs := c.flagSet("profile " + args[0])
	keyFile := fs.String("key", "", "encrypted key file")
	owner := fs.String("owner", "", "profile owner credential (get)")
	var userID, name, email, phone, delivery, preferred optionalString
	fs.Var(&userID, "user-id", "external user id")
	fs.Var(&name, "name", "display name")
	fs.Var(&email, "email", "email address")
	fs.Var(&phone, "phone", "phone number")
	fs.Var(&delivery, "delivery-address", "delivery address")
	fs.Var(&preferred, "preferred-store", "preferred store address")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	switch args[0] {
	case "get":
		if _, err := parseCred("owner", *owner); err != nil {
			return c.fail(err)
		}
		return c.query("sodap_getProfile", *owner)
	case "create":
		return c.submit(*keyFile, &ops.CreateWallet{})
	case "update":
		p := &ops.UpdateProfile{
			SetUserID:          userID.set,
			UserID:             userID.value,
			SetName:            name.set,
			Name:               name.value,
			SetEmail:           email.set,
			Email:              email.value,
			SetPhone:           phone.set,
			Phone:              phone.value,
			SetDeliveryAddress: delivery.set,
			DeliveryAddress:    delivery.value,
		}
		if preferred.set {
			addr, err := parseStore(preferred.value)
			if err != nil {
				return c.fail(err)
			}
			p.SetPreferredStore, p.PreferredStore = true, addr
		}
		return c.submit(*keyFile, p)
	default:
		return c.usageError("unknown profile subcommand " + args[0])
	}
}
