package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	relationDescription string
	relationUnoriented  bool
	coupleLabel         string
)

var relationCmd = &cobra.Command{
	Use:   "relation",
	Short: "Manage relations between notes",
}

var relationCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a relation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		in := relationInput{Name: args[0], Description: relationDescription}
		if err := inputValidate.Struct(in); err != nil {
			fatal("Invalid relation", err)
		}
		ctx := withReason(context.Background(), "create relation "+in.Name)
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		r, err := sess.Store.CreateRelation(ctx, in.Name, in.Description, !relationUnoriented)
		if err != nil {
			fatal("Failed to create relation", err)
		}
		fmt.Printf("Created relation %s (oriented: %v)\n", r.Name(), r.Oriented())
	},
}

var relationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List relations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		for _, r := range sess.Store.Relations() {
			arrow := "<->"
			if r.Oriented() {
				arrow = "->"
			}
			fmt.Printf("%-20s %-3s %4d  %s\n", r.Name(), arrow, r.Len(), r.Description())
		}
	},
}

var relationDescribeCmd = &cobra.Command{
	Use:   "describe <name> <description>",
	Short: "Change the description of a relation",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := withReason(context.Background(), "describe relation "+args[0])
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		if err := sess.Store.SetRelationDescription(ctx, args[0], args[1]); err != nil {
			fatal("Failed to describe relation", err)
		}
	},
}

var coupleCmd = &cobra.Command{
	Use:   "couple",
	Short: "Link notes within a relation",
}

var coupleAddCmd = &cobra.Command{
	Use:   "add <relation> <a> <b>",
	Short: "Add the couple (a, b) to a relation",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		in := coupleInput{Relation: args[0], A: args[1], B: args[2], Label: coupleLabel}
		if err := inputValidate.Struct(in); err != nil {
			fatal("Invalid couple", err)
		}
		ctx := withReason(context.Background(), fmt.Sprintf("link %s -> %s (%s)", in.A, in.B, in.Relation))
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		if _, err := sess.Store.CreateCouple(ctx, in.Relation, in.A, in.B, in.Label); err != nil {
			fatal("Failed to add couple", err)
		}
	},
}

var coupleRemoveCmd = &cobra.Command{
	Use:   "remove <relation> <a> <b>",
	Short: "Remove the couple (a, b) from a relation",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := withReason(context.Background(), fmt.Sprintf("unlink %s -> %s (%s)", args[1], args[2], args[0]))
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		if err := sess.Store.DeleteCouple(ctx, args[0], args[1], args[2]); err != nil {
			fatal("Failed to remove couple", err)
		}
	},
}

var coupleLabelCmd = &cobra.Command{
	Use:   "label <relation> <a> <b> <label>",
	Short: "Change the label of a couple",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		in := coupleInput{Relation: args[0], A: args[1], B: args[2], Label: args[3]}
		if err := inputValidate.Struct(in); err != nil {
			fatal("Invalid couple", err)
		}
		ctx := withReason(context.Background(), fmt.Sprintf("label %s -> %s (%s)", in.A, in.B, in.Relation))
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		if err := sess.Store.SetCoupleLabel(ctx, in.Relation, in.A, in.B, in.Label); err != nil {
			fatal("Failed to label couple", err)
		}
	},
}

var coupleListCmd = &cobra.Command{
	Use:   "list <relation>",
	Short: "List the couples of a relation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		r, ok := sess.Store.Relation(args[0])
		if !ok {
			fatal("Failed to list couples", fmt.Errorf("relation %q not found", args[0]))
		}
		arrow := "<->"
		if r.Oriented() {
			arrow = "->"
		}
		for _, c := range r.Couples() {
			fmt.Printf("%s %s %s", c.Ascendant().ID(), arrow, c.Descendant().ID())
			if c.Label() != "" {
				fmt.Printf("  [%s]", c.Label())
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(relationCmd, coupleCmd)
	relationCmd.AddCommand(relationCreateCmd, relationListCmd, relationDescribeCmd)
	coupleCmd.AddCommand(coupleAddCmd, coupleRemoveCmd, coupleLabelCmd, coupleListCmd)

	relationCreateCmd.Flags().StringVar(&relationDescription, "description", "", "Relation description")
	relationCreateCmd.Flags().BoolVar(&relationUnoriented, "unoriented", false, "Couples are symmetric")
	coupleAddCmd.Flags().StringVar(&coupleLabel, "label", "", "Couple label")
}
