package integrations

import (
	"context"
	"testing"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func int32Ptr(i int32) *int32 { return &i }

// scaleFakeClientset wraps fake.NewSimpleClientset with reactors for the
// deployments/scale subresource, which the fake object tracker does not
// implement (GetScale panics on the tracker's *Deployment otherwise).
func scaleFakeClientset(objects ...runtime.Object) *fake.Clientset {
	cs := fake.NewSimpleClientset(objects...)
	gvr := appsv1.SchemeGroupVersion.WithResource("deployments")
	cs.PrependReactor("get", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		get, ok := action.(k8stesting.GetAction)
		if !ok || action.GetSubresource() != "scale" {
			return false, nil, nil
		}
		obj, err := cs.Tracker().Get(gvr, get.GetNamespace(), get.GetName())
		if err != nil {
			return true, nil, err
		}
		d := obj.(*appsv1.Deployment)
		var replicas int32
		if d.Spec.Replicas != nil {
			replicas = *d.Spec.Replicas
		}
		return true, &autoscalingv1.Scale{
			ObjectMeta: metav1.ObjectMeta{Name: d.Name, Namespace: d.Namespace},
			Spec:       autoscalingv1.ScaleSpec{Replicas: replicas},
		}, nil
	})
	cs.PrependReactor("update", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		update, ok := action.(k8stesting.UpdateAction)
		if !ok || action.GetSubresource() != "scale" {
			return false, nil, nil
		}
		scale := update.GetObject().(*autoscalingv1.Scale)
		obj, err := cs.Tracker().Get(gvr, update.GetNamespace(), scale.Name)
		if err != nil {
			return true, nil, err
		}
		d := obj.(*appsv1.Deployment)
		d.Spec.Replicas = int32Ptr(scale.Spec.Replicas)
		if err := cs.Tracker().Update(gvr, d, update.GetNamespace()); err != nil {
			return true, nil, err
		}
		return true, scale, nil
	})
	return cs
}

func podNamed(name, app string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{"app": app},
		},
	}
}

func restartAction(service string) *domain.RecoveryAction {
	return &domain.RecoveryAction{
		ID:            "action-1",
		Type:          domain.ActionServiceRestart,
		TargetService: service,
	}
}

func TestRestartServiceDeletesMatchingPods(t *testing.T) {
	cs := fake.NewSimpleClientset(
		podNamed("checkout-1", "checkout"),
		podNamed("checkout-2", "checkout"),
		podNamed("payments-1", "payments"),
	)
	a := &K8sActions{clientset: cs, namespace: "default"}

	ok, err := a.restartService(context.Background(), restartAction("checkout"))
	require.NoError(t, err)
	assert.True(t, ok)

	remaining, err := cs.CoreV1().Pods("default").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, remaining.Items, 1)
	assert.Equal(t, "payments-1", remaining.Items[0].Name)
}

func TestRestartServiceNoMatchingPods(t *testing.T) {
	cs := fake.NewSimpleClientset()
	a := &K8sActions{clientset: cs, namespace: "default"}

	ok, err := a.restartService(context.Background(), restartAction("ghost"))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestScaleUpIncrementsReplicas(t *testing.T) {
	cs := scaleFakeClientset(&appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "checkout", Namespace: "default"},
		Spec:       appsv1.DeploymentSpec{Replicas: int32Ptr(2)},
	})
	a := &K8sActions{clientset: cs, namespace: "default"}

	action := &domain.RecoveryAction{
		Type:          domain.ActionScaleUp,
		TargetService: "checkout",
		Parameters:    map[string]string{"increment": "2"},
	}
	ok, err := a.scaleUp(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, ok)

	scale, err := cs.AppsV1().Deployments("default").GetScale(context.Background(), "checkout", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(4), scale.Spec.Replicas)
}

func TestScaleUpAbsoluteReplicas(t *testing.T) {
	cs := scaleFakeClientset(&appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "checkout", Namespace: "default"},
		Spec:       appsv1.DeploymentSpec{Replicas: int32Ptr(2)},
	})
	a := &K8sActions{clientset: cs, namespace: "default"}

	action := &domain.RecoveryAction{
		Type:          domain.ActionScaleUp,
		TargetService: "checkout",
		Parameters:    map[string]string{"replicas": "5"},
	}
	ok, err := a.scaleUp(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, ok)

	scale, err := cs.AppsV1().Deployments("default").GetScale(context.Background(), "checkout", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(5), scale.Spec.Replicas)
}

func TestScaleUpMissingDeployment(t *testing.T) {
	cs := scaleFakeClientset()
	a := &K8sActions{clientset: cs, namespace: "default"}

	ok, err := a.scaleUp(context.Background(), &domain.RecoveryAction{
		Type:          domain.ActionScaleUp,
		TargetService: "ghost",
	})
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestRedirectTrafficPatchesSelector(t *testing.T) {
	cs := fake.NewSimpleClientset(&corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "checkout", Namespace: "default"},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": "checkout"},
		},
	})
	a := &K8sActions{clientset: cs, namespace: "default"}

	action := &domain.RecoveryAction{
		Type:          domain.ActionTrafficRedirect,
		TargetService: "checkout",
	}
	ok, err := a.redirectTraffic(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, ok)

	svc, err := cs.CoreV1().Services("default").Get(context.Background(), "checkout", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "checkout-standby", svc.Spec.Selector["app"])
}

func TestNamespaceAndSelectorOverrides(t *testing.T) {
	a := &K8sActions{namespace: "default"}

	action := &domain.RecoveryAction{
		TargetService: "checkout",
		Parameters:    map[string]string{"namespace": "prod", "selector": "tier=web"},
	}
	assert.Equal(t, "prod", a.targetNamespace(action))
	assert.Equal(t, "tier=web", a.selector(action))

	plain := &domain.RecoveryAction{TargetService: "checkout"}
	assert.Equal(t, "default", a.targetNamespace(plain))
	assert.Equal(t, "app=checkout", a.selector(plain))
}
